package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
)

type commandParams struct {
	project     string
	searchRoot  string
	virtualPath string
	steps       []step
	form        keyValues
	settings    keyValues
	settingFile string
	showBody    bool
	debug       bool
}

// stepFlag adds a request step for each occurrence of -get or -post, keeping them in the
// order they were given.
type stepFlag struct {
	method string
	steps  *[]step
}

func (f stepFlag) String() string { return "" }

func (f stepFlag) Set(url string) error {
	if url == "" {
		return fmt.Errorf("URL must not be empty")
	}
	*f.steps = append(*f.steps, step{Method: f.method, URL: url})
	return nil
}

// keyValues is a repeatable name=value flag.
type keyValues map[string]string

func (kv *keyValues) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	parts := make([]string, 0, len(*kv))
	for k, v := range *kv {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (kv *keyValues) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("%q is not in the form name=value", s)
	}
	if *kv == nil {
		*kv = make(keyValues)
	}
	(*kv)[name] = value
	return nil
}

func (c *commandParams) Read(args []string) bool {
	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.StringVar(&c.project, "project", "", "application directory, found in the search root or any parent of it")
	fs.StringVar(&c.searchRoot, "root", "", "directory to start looking for the project in (default: working directory)")
	fs.StringVar(&c.virtualPath, "vpath", "/", "virtual path to serve the application under")
	fs.Var(stepFlag{method: http.MethodGet, steps: &c.steps}, "get", "URL to request with GET (may be repeated)")
	fs.Var(stepFlag{method: http.MethodPost, steps: &c.steps}, "post", "URL to request with POST (may be repeated)")
	fs.Var(&c.form, "form", "name=value form field sent with every POST (may be repeated)")
	fs.Var(&c.settings, "set", "name=value application setting override (may be repeated)")
	fs.StringVar(&c.settingFile, "settings", "", "YAML or JSON file of application setting overrides")
	fs.BoolVar(&c.showBody, "body", false, "print response bodies")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if c.project == "" {
		fmt.Fprintln(os.Stderr, "-project is required")
		fs.Usage()
		return false
	}
	if len(c.steps) == 0 {
		c.steps = []step{{Method: http.MethodGet, URL: "/"}}
	}
	return true
}
