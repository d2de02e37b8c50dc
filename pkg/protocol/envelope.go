package protocol

// Reserved envelope names.
const (
	// ResponseName marks a successful reply. Arguments[0] carries the result.
	ResponseName = "__response"

	// ErrorName marks a failed reply. Arguments is null.
	ErrorName = "__error"

	// IdentityQuery asks the receiving dispatch table for its label. It is
	// answered even when no operation of that name is registered.
	IdentityQuery = "GetName"
)

// Envelope is the unit exchanged over a connection.
type Envelope struct {
	// Name identifies the operation or one of the reserved reply markers.
	Name string `json:"name"`

	// Arguments bind positionally to the operation's parameters.
	Arguments []Value `json:"arguments"`

	// GUID correlates a request with its reply. Empty on fire-and-forget pushes.
	GUID string `json:"guid"`
}

// NewCommand builds a command envelope, encoding each argument with ValueOf.
// The GUID is left empty; callers expecting a reply assign one.
func NewCommand(name string, args ...any) (*Envelope, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	values := make([]Value, len(args))
	for i, arg := range args {
		v, err := ValueOf(arg)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return &Envelope{Name: name, Arguments: values}, nil
}

// NewResponse builds a successful reply carrying result.
func NewResponse(guid string, result Value) *Envelope {
	return &Envelope{
		Name:      ResponseName,
		Arguments: []Value{result},
		GUID:      guid,
	}
}

// NewError builds a failed reply.
func NewError(guid string) *Envelope {
	return &Envelope{
		Name: ErrorName,
		GUID: guid,
	}
}

// IsResponse reports whether e is a successful reply.
func (e *Envelope) IsResponse() bool {
	return e != nil && e.Name == ResponseName
}

// IsError reports whether e is a failed reply.
func (e *Envelope) IsError() bool {
	return e != nil && e.Name == ErrorName
}

// IsReply reports whether e is a reply of either kind.
func (e *Envelope) IsReply() bool {
	return e.IsResponse() || e.IsError()
}

// Arg returns the i-th argument.
func (e *Envelope) Arg(i int) (Value, bool) {
	if e == nil || i < 0 || i >= len(e.Arguments) {
		return Null, false
	}
	return e.Arguments[i], true
}

// Result returns the payload of a reply, or Null.
func (e *Envelope) Result() Value {
	v, _ := e.Arg(0)
	return v
}
