package core

// Namespace describes one independent relay: its transport path and the
// message types it forwards between room members.
type Namespace struct {
	Name    string
	Path    string
	relayed map[MessageType]struct{}
}

func NewNamespace(name, path string, relayed ...MessageType) Namespace {
	set := make(map[MessageType]struct{}, len(relayed))
	for _, t := range relayed {
		set[t] = struct{}{}
	}
	return Namespace{Name: name, Path: path, relayed: set}
}

// Relays reports whether t is forwarded in this namespace.
func (n Namespace) Relays(t MessageType) bool {
	_, ok := n.relayed[t]
	return ok
}

// AudioVideo is the call signaling namespace.
func AudioVideo(path string) Namespace {
	return NewNamespace("av", path, TypeOffer, TypeAnswer, TypeICECandidate, TypeMediaState)
}

// Whiteboard is the shared board namespace.
func Whiteboard(path string) Namespace {
	return NewNamespace("wb", path, TypeWBApply, TypeWBRequest, TypeWBSnapshot)
}
