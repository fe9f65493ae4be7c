package core

// CID represents binary CID bytes.
type CID struct {
	Bytes []byte
}

// Identifier names a stored object. It is the storage key and the URL path
// segment used for retrieval.
type Identifier string

func (id Identifier) String() string { return string(id) }

// Object is a stored object as seen by walks and restores.
type Object struct {
	ID   Identifier
	Body []byte
}
