package types

import "fmt"

func errValidation(msg string) error {
	return fmt.Errorf("types: %s", msg)
}
