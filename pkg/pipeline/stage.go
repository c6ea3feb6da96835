package pipeline

import "context"

// Signature declares the context entries a stage consumes and produces.
// Entries outside the signature pass through the stage untouched, which is
// what lets stages compose without knowing about each other.
type Signature struct {
	Reads  []string
	Writes []string
}

// Stage is one typed unit of work in a pipeline. Execute returns the updated
// item context, or nil to drop the item: a dropped item reaches no later
// stage and the run moves on to the next one. Errors are isolated per item
// by the enclosing pipeline.
type Stage interface {
	Name() string
	Signature() Signature
	Execute(ctx context.Context, item *Context) (*Context, error)
}

// funcStage adapts a plain function into a Stage.
type funcStage struct {
	name string
	sig  Signature
	fn   func(ctx context.Context, item *Context) (*Context, error)
}

// NewProcessor wraps fn as a transforming stage with the given signature.
func NewProcessor(name string, sig Signature, fn func(ctx context.Context, item *Context) (*Context, error)) Stage {
	return &funcStage{name: name, sig: sig, fn: fn}
}

// NewConsumer wraps fn as a terminal side-effect stage: it reads the given
// entries and produces nothing new.
func NewConsumer(name string, reads []string, fn func(ctx context.Context, item *Context) error) Stage {
	return &funcStage{
		name: name,
		sig:  Signature{Reads: reads},
		fn: func(ctx context.Context, item *Context) (*Context, error) {
			if err := fn(ctx, item); err != nil {
				return nil, err
			}
			return item, nil
		},
	}
}

// NewFilter wraps a predicate as a pass-or-drop stage over the given
// entries. Returning false drops the item without error.
func NewFilter(name string, reads []string, pred func(ctx context.Context, item *Context) (bool, error)) Stage {
	return &funcStage{
		name: name,
		sig:  Signature{Reads: reads},
		fn: func(ctx context.Context, item *Context) (*Context, error) {
			keep, err := pred(ctx, item)
			if err != nil {
				return nil, err
			}
			if !keep {
				return nil, nil
			}
			return item, nil
		},
	}
}

func (s *funcStage) Name() string         { return s.name }
func (s *funcStage) Signature() Signature { return s.sig }

func (s *funcStage) Execute(ctx context.Context, item *Context) (*Context, error) {
	return s.fn(ctx, item)
}
