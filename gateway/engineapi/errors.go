package engineapi

import "fmt"

func errNotFound(what string) error {
	return fmt.Errorf("%s not found", what)
}

func errMissingQueryParam(name string) error {
	return fmt.Errorf("missing query parameter %q", name)
}
