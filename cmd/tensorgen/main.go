// tensorgen generates the per-backend dispatch sources from the declaration
// files given as arguments (cwrap, nn.yaml and native_functions.yaml
// dialects).
//
// Typical usage:
//
//	tensorgen -install-dir=build/aten Declarations.cwrap nn.yaml native_functions.yaml
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/tensorgen/internal/filemanager"
	"github.com/gomlx/tensorgen/internal/gen"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagSourcePath = flag.String("source-path", "", "Directory whose templates/ subdirectory overrides "+
		"the compiled-in templates. Leave empty to use the compiled-in ones.")
	flagInstallDir = flag.String("install-dir", "ATen", "Output directory. The tensor core files go "+
		"to its core/ subdirectory.")
	flagOutputDependencies = flag.String("output-dependencies", "", "Instead of generating, write the "+
		"lists of files that would be generated to this path (and its -core and -cuda siblings), for "+
		"build-system dependency tracking.")
	flagROCm   = flag.Bool("rocm", false, "Generate for ROCm/HIP instead of CUDA.")
	flagVulkan = flag.Bool("vulkan", false, "Also generate the Vulkan backend.")

	flagOpWhitelist = flag.String("op-registration-whitelist", "",
		"Comma- or space-separated list of operators (namespace::op, no overload) whose kernel "+
			"registrations are kept; everything else is filtered out. Empty means register everything.")
	flagBackendWhitelist = flag.String("backend-whitelist", "",
		"Comma- or space-separated list of backends (e.g. CPU,SparseCUDA) to generate. Empty means all.")
	flagPerOpRegistration = flag.Bool("per-op-registration", false,
		"Group kernel registrations into one file per operator. Requires -op-registration-whitelist.")
	flagForceSchemaRegistration = flag.Bool("force-schema-registration", false,
		"Emit schema-only registrations for every operator, including whitelist-excluded ones.")

	flagSummary = flag.Bool("summary", true, "Print a table summarizing the generated partitions.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 && *flagOutputDependencies == "" {
		klog.Errorf("No declaration files given. See 'tensorgen -help'.")
		os.Exit(1)
	}

	opts := gen.Options{
		Files:                   files,
		SourcePath:              *flagSourcePath,
		InstallDir:              *flagInstallDir,
		OutputDependencies:      *flagOutputDependencies,
		ROCm:                    *flagROCm,
		Vulkan:                  *flagVulkan,
		OpRegistrationWhitelist: splitList(*flagOpWhitelist),
		BackendWhitelist:        splitList(*flagBackendWhitelist),
		PerOpRegistration:       *flagPerOpRegistration,
		ForceSchemaRegistration: *flagForceSchemaRegistration,
	}
	report := must.M1(gen.Run(opts))

	if *flagOutputDependencies != "" {
		fmt.Printf("✅ tensorgen: successfully generated dependency lists at %s{,-core,-cuda}\n",
			*flagOutputDependencies)
		return
	}
	if *flagSummary {
		printSummary(report)
	}
	fmt.Printf("✅ tensorgen: successfully generated %s files (%s changed) from %s declarations in %s\n",
		humanize.Comma(int64(totalFiles(report))), humanize.Comma(int64(totalChanged(report))),
		humanize.Comma(int64(report.DeclarationCount)), *flagInstallDir)
}

// splitList splits a comma- or space-separated flag value, returning nil
// (meaning "no filtering") when it holds no entries, as opposed to an empty
// whitelist that would filter everything.
func splitList(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func totalFiles(report *gen.Report) int {
	return report.Core.FileCount() + report.Common.FileCount() + report.CUDA.FileCount()
}

func totalChanged(report *gen.Report) int {
	return report.Core.ChangedCount() + report.Common.ChangedCount() + report.CUDA.ChangedCount()
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == 1 {
				s = headerRowStyle
				return
			}
			switch {
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

func printSummary(report *gen.Report) {
	table := newPlainTable(true)
	table.Row("Partition", "Directory", "# Files", "# Changed", "# Bytes")
	for _, fm := range []*filemanager.FileManager{report.Core, report.Common, report.CUDA} {
		table.Row(fm.Name, fm.InstallDir(),
			humanize.Comma(int64(fm.FileCount())),
			humanize.Comma(int64(fm.ChangedCount())),
			humanize.Bytes(uint64(fm.TotalBytes())))
	}
	fmt.Println(table.Render())
}
