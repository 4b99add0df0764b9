// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package gen drives the whole declaration-to-registration pipeline: parse,
// normalize, generic generation, per-(backend,density) expansion,
// registration aggregation and artifact emission, under the declared-output
// contract of the filemanager package.
package gen

import (
	"path/filepath"
	"strings"

	"github.com/gomlx/tensorgen/internal/backends"
	"github.com/gomlx/tensorgen/internal/codegen"
	"github.com/gomlx/tensorgen/internal/codetemplate"
	"github.com/gomlx/tensorgen/internal/declarations"
	"github.com/gomlx/tensorgen/internal/filemanager"
	"github.com/gomlx/tensorgen/internal/parsers"
	"github.com/gomlx/tensorgen/internal/templates"
	"github.com/gomlx/tensorgen/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Options configures one generator run. The zero value is not usable: Files
// and InstallDir are required.
type Options struct {
	// Files are the declaration-source files, each matching one of the
	// three recognized dialects by filename pattern.
	Files []string

	// SourcePath optionally points at a checkout whose templates/
	// directory overrides the compiled-in templates.
	SourcePath string

	// InstallDir is the output root. The core partition goes to
	// InstallDir/core.
	InstallDir string

	// OutputDependencies, when non-empty, switches the run into
	// dependency-list mode: only the declared filename lists are written
	// (to this path and its -core/-cuda siblings), no generation happens.
	OutputDependencies string

	// ROCm reinterprets CUDA as ROCm/HIP, switching the CUDA-flavored
	// header bundle.
	ROCm bool

	// Vulkan enables generation of the Vulkan backend.
	Vulkan bool

	// OpRegistrationWhitelist restricts kernel registrations to the named
	// operators (namespace::op, no overload). nil means no filtering.
	OpRegistrationWhitelist []string

	// BackendWhitelist restricts generation to the named full backends
	// (e.g. CPU, SparseCUDA). nil means all.
	BackendWhitelist []string

	// PerOpRegistration groups kernel registrations into one file per
	// operator name; requires OpRegistrationWhitelist.
	PerOpRegistration bool

	// ForceSchemaRegistration emits schema-only registrations for every
	// operator, including those excluded by the whitelist.
	ForceSchemaRegistration bool
}

// Report summarizes a finished run for the caller's reporting.
type Report struct {
	Core, Common, CUDA *filemanager.FileManager

	// DeclarationCount is the number of normalized declarations processed;
	// zero in dependency-list mode.
	DeclarationCount int
}

// Run executes one full generation (or dependency-list) run.
func Run(opts Options) (*Report, error) {
	if opts.PerOpRegistration && opts.OpRegistrationWhitelist == nil {
		return nil, errors.New("per-op registration requires an op-registration whitelist")
	}
	r := &runner{opts: opts}
	if opts.OpRegistrationWhitelist != nil {
		r.opWhitelist = sets.MakeWith(opts.OpRegistrationWhitelist...)
	}
	if opts.BackendWhitelist != nil {
		r.backendWhitelist = sets.MakeWith(opts.BackendWhitelist...)
	}

	var err error
	if r.core, err = filemanager.New("core", filepath.Join(opts.InstallDir, "core")); err != nil {
		return nil, err
	}
	if r.common, err = filemanager.New("common", opts.InstallDir); err != nil {
		return nil, err
	}
	if r.cuda, err = filemanager.New("cuda", opts.InstallDir); err != nil {
		return nil, err
	}
	report := &Report{Core: r.core, Common: r.common, CUDA: r.cuda}

	// The full output contract is established before any generation work,
	// so dependency-list mode stays cheap.
	r.declareOutputs()

	if opts.OutputDependencies != "" {
		if err := r.common.WriteOutputs(opts.OutputDependencies); err != nil {
			return nil, err
		}
		if err := r.core.WriteOutputs(opts.OutputDependencies + "-core"); err != nil {
			return nil, err
		}
		if err := r.cuda.WriteOutputs(opts.OutputDependencies + "-cuda"); err != nil {
			return nil, err
		}
		return report, nil
	}

	if err := r.generateOutputs(); err != nil {
		return nil, err
	}
	report.DeclarationCount = r.declarationCount

	var problems []string
	for _, fm := range []*filemanager.FileManager{r.core, r.common, r.cuda} {
		if err := fm.CheckAllWritten(); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "\n"))
	}
	return report, nil
}

type runner struct {
	opts             Options
	opWhitelist      sets.Set[string]
	backendWhitelist sets.Set[string]

	core, common, cuda *filemanager.FileManager

	top              codegen.TopEnv
	agg              *codegen.Aggregator
	declarationCount int
}

func (r *runner) backendEnabled(fullBackend string) bool {
	return r.backendWhitelist == nil || r.backendWhitelist.Has(fullBackend)
}

// legacyPair reports whether the pair owns a LegacyTHFunctions file pair:
// only the dense legacy backends do.
func legacyPair(pair backends.Pair) bool {
	return pair.Density == backends.Dense &&
		(pair.Backend == backends.CPU || pair.Backend == backends.CUDA)
}

// partitionFor routes CUDA-device artifacts to the cuda partition,
// everything else to common.
func (r *runner) partitionFor(pair backends.Pair) *filemanager.FileManager {
	if pair.Backend.DeviceType() == "CUDA" {
		return r.cuda
	}
	return r.common
}

// declareOutputs registers every file this run will produce.
func (r *runner) declareOutputs() {
	for _, f := range []string{"TensorBody.h", "TensorMethods.cpp", "ATenOpList.cpp", "TensorFunctions.cpp"} {
		r.core.WillWrite(f)
	}
	for _, f := range []string{"Declarations.yaml", "TypeDefault.cpp", "TypeDefault.h",
		"Functions.h", "NativeFunctions.h", "BackendSelectRegister.cpp"} {
		r.common.WillWrite(f)
	}
	for _, pair := range backends.Pairs(r.opts.Vulkan) {
		if !r.backendEnabled(pair.FullName()) {
			continue
		}
		fm := r.partitionFor(pair)
		fm.WillWrite(pair.TypeName() + ".h")
		fm.WillWrite(pair.TypeName() + ".cpp")
		if legacyPair(pair) {
			fm.WillWrite("LegacyTHFunctions" + pair.Backend.String() + ".h")
			fm.WillWrite("LegacyTHFunctions" + pair.Backend.String() + ".cpp")
		}
	}
	if r.opts.PerOpRegistration {
		for _, opname := range sets.Sorted(r.opWhitelist) {
			r.common.WillWrite(perOpRegistrationFilename(opname))
		}
	}
	if r.opts.ForceSchemaRegistration {
		r.common.WillWrite("SchemaRegister.cpp")
	}
}

// perOpRegistrationFilename derives the per-operator registration filename;
// ':' is not portable in filenames consumed by every build system.
func perOpRegistrationFilename(opname string) string {
	return "pt_op_register_" + strings.ReplaceAll(opname, ":", "-") + ".cpp"
}

func (r *runner) template(name string) (*codetemplate.Template, error) {
	return templates.Load(name, r.opts.SourcePath)
}

func (r *runner) writeTemplate(fm *filemanager.FileManager, filename, templateName string, env codetemplate.Env) error {
	tmpl, err := r.template(templateName)
	if err != nil {
		return err
	}
	return fm.WriteTemplate(filename, tmpl, env)
}

// generateOutputs runs the actual pipeline, filling the declared contract.
func (r *runner) generateOutputs() error {
	decls, err := parsers.ParseFiles(r.opts.Files)
	if err != nil {
		return err
	}
	decls = declarations.Normalize(decls)
	r.declarationCount = len(decls)

	r.agg = codegen.NewAggregator(r.opWhitelist, r.opts.PerOpRegistration, r.opts.ForceSchemaRegistration)

	// The generic pass runs exactly once, before any expansion: it
	// attaches the shared declaration text the per-backend pass reads.
	genericRegs := codegen.CreateGeneric(&r.top, decls)
	r.agg.Add(&r.top.FunctionRegistrations, genericRegs)

	manifest, err := declarations.ManifestYAML(decls)
	if err != nil {
		return err
	}
	if err := r.common.Write("Declarations.yaml", manifest); err != nil {
		return err
	}

	backendSelect := codegen.CreateBackendSelect(decls)
	if err := r.writeTemplate(r.common, "BackendSelectRegister.cpp", "BackendSelectRegister.cpp",
		backendSelect.TemplateEnv()); err != nil {
		return err
	}

	for _, pair := range backends.Pairs(r.opts.Vulkan) {
		if err := r.generateTypePair(pair, decls); err != nil {
			return err
		}
	}

	if err := r.writeCoreFiles(); err != nil {
		return err
	}
	if err := r.writeDefaultFiles(); err != nil {
		return err
	}
	if err := r.writePerOpRegistrations(); err != nil {
		return err
	}
	return r.writeSchemaRegistrations()
}

// generateTypePair expands the declarations for one (backend, density) pair
// and emits its derived-type artifacts. Pairs excluded by the backend
// whitelist are skipped outright: no files, no registrations, no type ID.
func (r *runner) generateTypePair(pair backends.Pair, decls []*declarations.Declaration) error {
	if !r.backendEnabled(pair.FullName()) {
		klog.V(1).Infof("backend %s excluded by whitelist", pair.FullName())
		return nil
	}
	env := codegen.NewDerivedEnv(pair, r.opts.ROCm)
	derived := codegen.CreateDerived(env, decls)

	r.top.TypeIDs = append(r.top.TypeIDs, env.FullBackend+",")

	var perTypeRegistrations []string
	r.agg.Add(&perTypeRegistrations, derived.Registrations)

	fm := r.partitionFor(pair)
	if legacyPair(pair) {
		backendName := pair.Backend.String()
		env.LegacyTHHeaders = append(env.LegacyTHHeaders,
			"#include <ATen/LegacyTHFunctions"+backendName+".h>")
		legacyEnv := codetemplate.Env{
			"namespace":              strings.ToLower(backendName),
			"legacy_th_declarations": derived.LegacyDeclarations,
			"legacy_th_definitions":  derived.LegacyDefinitions,
			"legacy_th_headers":      env.LegacyTHHeaders,
			"th_headers":             env.THHeaders,
			"extra_cuda_headers":     env.ExtraCUDAHeaders,
		}
		if err := r.writeTemplate(fm, "LegacyTHFunctions"+backendName+".h",
			"LegacyTHFunctions.h", legacyEnv); err != nil {
			return err
		}
		if err := r.writeTemplate(fm, "LegacyTHFunctions"+backendName+".cpp",
			"LegacyTHFunctions.cpp", legacyEnv); err != nil {
			return err
		}
	}

	templateEnv := env.TemplateEnv(derived.TypeDeclarations, derived.TypeDefinitions, perTypeRegistrations)
	// Sparse types carry no storage artifacts and render from the
	// alternate top-level template.
	derivedCpp := "TypeDerived.cpp"
	if pair.Density == backends.Sparse {
		derivedCpp = "SparseTypeDerived.cpp"
	}
	if err := r.writeTemplate(fm, env.Type+".cpp", derivedCpp, templateEnv); err != nil {
		return err
	}
	if err := r.writeTemplate(fm, env.Type+".h", "TypeDerived.h", templateEnv); err != nil {
		return err
	}

	header := "#include <ATen/" + env.Type + ".h>"
	if env.DeviceType == "CUDA" {
		r.top.CUDATypeHeaders = append(r.top.CUDATypeHeaders, header)
	} else {
		r.top.CPUTypeHeaders = append(r.top.CPUTypeHeaders, header)
	}
	return nil
}

func (r *runner) writeCoreFiles() error {
	if err := r.writeTemplate(r.core, "TensorBody.h", "TensorBody.h", codetemplate.Env{
		"tensor_method_declarations": r.top.TensorMethodDeclarations,
	}); err != nil {
		return err
	}
	if err := r.writeTemplate(r.core, "TensorMethods.cpp", "TensorMethods.cpp", codetemplate.Env{
		"tensor_method_definitions": r.top.TensorMethodDefinitions,
	}); err != nil {
		return err
	}
	if err := r.writeTemplate(r.core, "ATenOpList.cpp", "ATenOpList.cpp", codetemplate.Env{
		"aten_ops": r.top.ATenOps,
	}); err != nil {
		return err
	}
	return r.writeTemplate(r.core, "TensorFunctions.cpp", "TensorFunctions.cpp", codetemplate.Env{
		"function_definitions": r.top.FunctionDefinitions,
	})
}

func (r *runner) writeDefaultFiles() error {
	if err := r.writeTemplate(r.common, "TypeDefault.h", "TypeDefault.h", codetemplate.Env{
		"type_ids":                 r.top.TypeIDs,
		"type_method_declarations": r.top.TypeMethodDeclarations,
	}); err != nil {
		return err
	}
	if err := r.writeTemplate(r.common, "TypeDefault.cpp", "TypeDefault.cpp", codetemplate.Env{
		"cpu_type_headers":        r.top.CPUTypeHeaders,
		"cuda_type_headers":       r.top.CUDATypeHeaders,
		"type_method_definitions": r.top.TypeMethodDefinitions,
		"function_registrations":  r.top.FunctionRegistrations,
	}); err != nil {
		return err
	}
	if err := r.writeTemplate(r.common, "Functions.h", "Functions.h", codetemplate.Env{
		"function_declarations": r.top.FunctionDeclarations,
	}); err != nil {
		return err
	}
	return r.writeTemplate(r.common, "NativeFunctions.h", "NativeFunctions.h", codetemplate.Env{
		"native_function_declarations": r.top.NativeFunctionDeclarations,
	})
}

// writePerOpRegistrations emits one registration file per whitelisted
// operator. A whitelisted operator with no registrations still gets an
// empty placeholder file, so build systems can create per-op targets
// uniformly (hand-registered operators may call codegen-registered ones, so
// they cannot simply be skipped from the dependency graph).
func (r *runner) writePerOpRegistrations() error {
	if !r.opts.PerOpRegistration {
		return nil
	}
	extraHeaders := append(append([]string{}, r.top.CPUTypeHeaders...), r.top.CUDATypeHeaders...)
	for _, opname := range sets.Sorted(r.opWhitelist) {
		if err := r.writeTemplate(r.common, perOpRegistrationFilename(opname),
			"PerOpRegistration.cpp", codetemplate.Env{
				"extra_headers":          extraHeaders,
				"function_registrations": r.agg.PerOp[opname],
			}); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) writeSchemaRegistrations() error {
	if !r.opts.ForceSchemaRegistration {
		return nil
	}
	return r.writeTemplate(r.common, "SchemaRegister.cpp", "SchemaRegister.cpp", codetemplate.Env{
		"schema_registrations": r.agg.SchemaRegistrations(),
	})
}
