package badger

// Key layout:
//
//	n:<path>              -> node data
//	c:<parent>\x00<name>  -> empty; one entry per child
//
// The NUL separator keeps the children of "/a" apart from those of "/ab".
const (
	prefixNode  = "n:"
	prefixChild = "c:"
	childSep    = "\x00"
)

func keyNode(path string) []byte {
	return []byte(prefixNode + path)
}

func keyChild(parent, name string) []byte {
	return []byte(prefixChild + parent + childSep + name)
}

func keyChildPrefix(parent string) []byte {
	return []byte(prefixChild + parent + childSep)
}
