package tools

import (
	"fmt"
	"sort"
	"strings"
)

// stringArgument returns a required string argument that is not blank.
func stringArgument(args Args, key string) (string, error) {
	s, err := nonEmptyString(args, key)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: argument %q must not be blank", ErrInvalidArguments, key)
	}
	return s, nil
}

// nonEmptyString returns a required string argument of at least one byte.
// Whitespace is kept as given.
func nonEmptyString(args Args, key string) (string, error) {
	value, ok := args[key]
	if !ok || value == nil {
		return "", fmt.Errorf("%w: missing argument %q", ErrInvalidArguments, key)
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %q must be a string", ErrInvalidArguments, key)
	}
	if s == "" {
		return "", fmt.Errorf("%w: argument %q must not be empty", ErrInvalidArguments, key)
	}
	return s, nil
}

// noArguments rejects any key at all.
func noArguments(args Args) error {
	if len(args) == 0 {
		return nil
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Errorf("%w: takes no arguments, got %s", ErrInvalidArguments, strings.Join(keys, ", "))
}
