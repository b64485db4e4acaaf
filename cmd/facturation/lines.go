package main

import (
	"fmt"
	"strings"

	"github.com/ona79/facturation-app/pkg/usecase"
)

// parseLineArg splits "name:price:qty" from the right so names may contain
// colons.
func parseLineArg(arg string) (usecase.LineInput, error) {
	rest, qty, ok := cutLast(arg, ":")
	if !ok {
		return usecase.LineInput{}, fmt.Errorf("line %q: want name:price:qty", arg)
	}
	name, price, ok := cutLast(rest, ":")
	if !ok {
		return usecase.LineInput{}, fmt.Errorf("line %q: want name:price:qty", arg)
	}
	return usecase.LineInput{Name: name, UnitPrice: price, Quantity: qty}, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
