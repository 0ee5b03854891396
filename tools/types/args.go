package types

// Arguments holds invocation arguments already bound to their declared
// parameter types: integers are int64, numbers float64.
type Arguments map[string]any

func (a Arguments) Has(name string) bool {
	_, ok := a[name]
	return ok
}

func (a Arguments) Int(name string) int64 {
	v, _ := a[name].(int64)
	return v
}

func (a Arguments) Float(name string) float64 {
	switch v := a[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func (a Arguments) String(name string) string {
	v, _ := a[name].(string)
	return v
}

func (a Arguments) Bool(name string) bool {
	v, _ := a[name].(bool)
	return v
}
