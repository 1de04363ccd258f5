package protocol

const (
	faultCodeMember   = "faultCode"
	faultStringMember = "faultString"
)

// FaultFromValue validates v as a fault struct: exactly the members
// faultCode (Int) and faultString (String), in either order.
func FaultFromValue(v Value) (*Fault, error) {
	s, ok := v.(Struct)
	if !ok {
		return nil, Decodingf("fault must be a struct, got %s", KindOf(v))
	}
	if len(s) != 2 {
		return nil, Decodingf("fault struct must have exactly 2 members, got %d", len(s))
	}
	var (
		fault             Fault
		haveCode, haveMsg bool
	)
	for _, m := range s {
		switch m.Name {
		case faultCodeMember:
			code, ok := m.Value.(Int)
			if !ok || haveCode {
				return nil, Decodingf("fault member %s must be a single %s", faultCodeMember, KindInt)
			}
			fault.Code = int32(code)
			haveCode = true
		case faultStringMember:
			msg, ok := m.Value.(String)
			if !ok || haveMsg {
				return nil, Decodingf("fault member %s must be a single %s", faultStringMember, KindString)
			}
			fault.Message = string(msg)
			haveMsg = true
		default:
			return nil, Decodingf("unexpected fault member %q", m.Name)
		}
	}
	return &fault, nil
}
