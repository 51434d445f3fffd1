package logging

// Nop is a Logger that discards everything. Used by tests that don't care
// about log output.
type Nop struct{}

func (Nop) Debug(string, ...any) {}
func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}
func (n Nop) With(...any) Logger { return n }
