// Package call composes validation steps that stop on the first failure
package call

// Call is a deferred error-returning function
type Call func() error

// Perform runs calls in order and returns the first error
func Perform(calls ...Call) error {
	for _, c := range calls {
		if err := c(); err != nil {
			return err
		}
	}
	return nil
}

// WithArg binds one argument to a call
func WithArg[Arg any](fn func(Arg) error, arg Arg) Call {
	return func() error {
		return fn(arg)
	}
}

// WithArgs binds two arguments to a call
func WithArgs[Arg1, Arg2 any](
	fn func(Arg1, Arg2) error, arg1 Arg1, arg2 Arg2,
) Call {
	return func() error {
		return fn(arg1, arg2)
	}
}
