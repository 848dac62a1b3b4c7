package main

import (
	_ "embed" // this is required in order for go:embed to work
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/integrationkit/apphost/apphost"
	"github.com/integrationkit/apphost/framework"
	_ "github.com/integrationkit/apphost/sampleapp" // registers the sample application
	"github.com/integrationkit/apphost/transport"
	"github.com/integrationkit/apphost/webapp"

	"github.com/fatih/color"
)

//go:embed VERSION
var versionString string // comes from the VERSION file which we update for each release

var okColor = color.New(color.FgGreen)                 //nolint:gochecknoglobals
var failedColor = color.New(color.FgRed)               //nolint:gochecknoglobals
var errorColor = color.New(color.FgYellow)             //nolint:gochecknoglobals
var detailColor = color.New(color.Faint)               //nolint:gochecknoglobals
var cookieColor = color.New(color.Faint, color.FgBlue) //nolint:gochecknoglobals

func main() {
	fmt.Printf("apphost v%s\n", strings.TrimSpace(versionString))

	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}

	results, err := run(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printResults(results, params.showBody)
	for _, r := range results {
		if !r.OK() {
			os.Exit(1)
		}
	}
}

func run(params commandParams) ([]stepResult, error) {
	logger := framework.NullLogger()
	if params.debug {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}

	options := []apphost.Option{
		apphost.WithLogger(logger),
		apphost.WithVirtualPath(params.virtualPath),
		apphost.WithSearchRoot(params.searchRoot),
	}
	overrides, err := loadOverrides(params)
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		options = append(options, apphost.WithSettings(overrides))
	}

	host, err := apphost.Simulate(params.project, options...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = host.Close() }()

	s := script{Steps: make([]step, 0, len(params.steps))}
	for _, st := range params.steps {
		if st.Method == http.MethodPost {
			st.Form = params.form
		}
		s.Steps = append(s.Steps, st)
	}
	var results []stepResult
	if err := host.Start(transport.New(runScript, s), &results); err != nil {
		return nil, err
	}
	return results, nil
}

// loadOverrides combines the -settings file with -set flags, which take precedence. It
// returns nil if neither was given.
func loadOverrides(params commandParams) (map[string]string, error) {
	if params.settingFile == "" && len(params.settings) == 0 {
		return nil, nil
	}
	overrides := make(map[string]string)
	if params.settingFile != "" {
		data, err := os.ReadFile(params.settingFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read settings file: %v", err)
		}
		if err := webapp.ParseJSONOrYAML(data, &overrides); err != nil {
			return nil, fmt.Errorf("cannot parse settings file %s: %v", params.settingFile, err)
		}
	}
	for k, v := range params.settings {
		overrides[k] = v
	}
	return overrides, nil
}

func printResults(results []stepResult, showBody bool) {
	for _, r := range results {
		fmt.Printf("[%s %s]\n", r.Method, r.URL)
		switch {
		case r.Error != "":
			for _, line := range strings.Split(r.Error, "\n") {
				_, _ = errorColor.Printf("  %s\n", line)
			}
		case r.OK():
			_, _ = okColor.Printf("  %d %s\n", r.Status, http.StatusText(r.Status))
		default:
			_, _ = failedColor.Printf("  %d %s\n", r.Status, http.StatusText(r.Status))
		}
		if len(r.Cookies) > 0 {
			_, _ = cookieColor.Printf("  cookies: %s\n", strings.Join(r.Cookies, "; "))
		}
		if showBody && r.Body != "" {
			for _, line := range strings.Split(strings.TrimRight(r.Body, "\n"), "\n") {
				_, _ = detailColor.Printf("    %s\n", line)
			}
		}
	}
}
