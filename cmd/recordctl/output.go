package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-record-cache/criteria"
	"github.com/goliatone/go-record-cache/entity"
)

func (a *app) print(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(out))
	return err
}

// parseValue turns a command line value into the type the store expects:
// integers, floats, booleans and null are recognized, anything else stays a
// string.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// parseWhere builds an equality criteria from column=value pairs.
func parseWhere(pairs []string) (criteria.Criteria, error) {
	if len(pairs) == 0 {
		return criteria.None(), nil
	}
	m := criteria.Map{}
	for _, pair := range pairs {
		column, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(column) == "" {
			return criteria.Criteria{}, fmt.Errorf("invalid filter %q, want column=value", pair)
		}
		m[strings.TrimSpace(column)] = parseValue(strings.TrimSpace(value))
	}
	return criteria.Where(m), nil
}

// parseEntity decodes a JSON object. Integral numbers become int64.
func parseEntity(payload string) (entity.Entity, error) {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}

	e := make(entity.Entity, len(raw))
	for k, v := range raw {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				v = i
			} else if f, err := n.Float64(); err == nil {
				v = f
			}
		}
		e[k] = v
	}
	return e, nil
}
