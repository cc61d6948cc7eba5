package datastructure

import (
	"github.com/go-playground/validator/v10"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a path row before it crosses the store boundary.
func (p PathDoc) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "path %s (%d -> %d)", p.ID, p.StartNode, p.EndNode)
	}
	if len(p.Nodes) < 2 {
		return errs.New(errs.ErrCodeInvalidInput, "path %s has %d geometry nodes", p.ID, len(p.Nodes))
	}
	return nil
}

func (p SplitPathDoc) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "split path %s (%s -> %s)", p.ID, p.StartNode, p.EndNode)
	}
	return nil
}
