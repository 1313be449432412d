package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// formatter renders command output for the --output flag.
type formatter interface {
	Format(data any) string
}

// newFormatter supports "table" (default), "json" and "yaml".
func newFormatter(format string) formatter {
	switch strings.ToLower(format) {
	case "json":
		return jsonFormatter{}
	case "yaml":
		return yamlFormatter{}
	default:
		return tableFormatter{}
	}
}

// tableFormatter prints a slice of structs as aligned columns headed by the
// upper-cased field names.
type tableFormatter struct{}

func (tableFormatter) Format(data any) string {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		return fmt.Sprintln(data)
	}
	if v.Len() == 0 {
		return "No rows.\n"
	}
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	t := v.Index(0).Type()
	headers := make([]string, t.NumField())
	for i := range headers {
		headers[i] = strings.ToUpper(t.Field(i).Name)
	}
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for i := 0; i < v.Len(); i++ {
		row := v.Index(i)
		vals := make([]string, row.NumField())
		for j := range vals {
			vals[j] = fmt.Sprintf("%v", row.Field(j).Interface())
		}
		fmt.Fprintln(w, strings.Join(vals, "\t"))
	}
	w.Flush()
	return buf.String()
}

type jsonFormatter struct{}

func (jsonFormatter) Format(data any) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("error formatting JSON: %v\n", err)
	}
	return string(b) + "\n"
}

type yamlFormatter struct{}

func (yamlFormatter) Format(data any) string {
	b, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Sprintf("error formatting YAML: %v\n", err)
	}
	return string(b)
}
