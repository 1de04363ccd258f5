package protocol

import "strconv"

// Params is an ordered list of positional arguments or return values.
type Params []Value

// Collapse folds params into one value: none is Nil, one is that value,
// more become an Array.
func (p Params) Collapse() Value {
	switch len(p) {
	case 0:
		return Nil{}
	case 1:
		return p[0]
	default:
		return Array(p)
	}
}

// SplitParams is the inverse of Collapse: an Array spreads into its elements,
// Nil yields no params and anything else is a single param.
func SplitParams(v Value) Params {
	switch tv := v.(type) {
	case Array:
		return Params(tv)
	case nil, Nil:
		return Params{}
	default:
		return Params{v}
	}
}

// Call is a method invocation. Name is opaque and not validated.
type Call struct {
	Name   string
	Params Params
}

// NewCall builds a call.
func NewCall(name string, params ...Value) Call {
	if params == nil {
		params = Params{}
	}
	return Call{Name: name, Params: params}
}

// Fault is an application-level RPC failure reported by the remote method.
// It implements error so typed callers can return it, but it is regular
// response content for the codec.
type Fault struct {
	Code    int32
	Message string
}

// NewFault builds a fault.
func NewFault(code int32, message string) *Fault {
	return &Fault{Code: code, Message: message}
}

func (f *Fault) Error() string {
	return "fault " + strconv.FormatInt(int64(f.Code), 10) + ": " + f.Message
}

// Value renders f as the faultCode/faultString struct.
func (f Fault) Value() Struct {
	return Struct{
		{Name: faultCodeMember, Value: Int(f.Code)},
		{Name: faultStringMember, Value: String(f.Message)},
	}
}

// Response is either positional return values or a fault.
type Response struct {
	Params Params
	Fault  *Fault
}

// Success builds a non-fault response.
func Success(params ...Value) Response {
	if params == nil {
		params = Params{}
	}
	return Response{Params: params}
}

// Failure builds a fault response.
func Failure(code int32, message string) Response {
	return Response{Fault: NewFault(code, message)}
}

// IsFault reports whether r carries a fault.
func (r Response) IsFault() bool {
	return r.Fault != nil
}
