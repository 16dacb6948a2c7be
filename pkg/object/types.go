package object

// Hash is a 40-character lowercase hex SHA-1 object identifier.
type Hash string

// ObjectType identifies the grammar of an object's payload.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

const (
	// Tree mode constants, byte-identical to Git's canonical mode strings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
)

// Blob holds raw file data, byte-identical to the working file it came from.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry of a Tree: a name, its mode, and the OID it names.
// Directory entries (IsDir) point at a subtree; file entries point at a blob.
type TreeEntry struct {
	Name        string
	IsDir       bool
	Mode        string
	BlobHash    Hash
	SubtreeHash Hash
}

// TreeObj is a sorted, flat snapshot of one directory level.
type TreeObj struct {
	Entries []TreeEntry // sorted by the directory-aware name comparator
}

// Signature is an author or committer line: name, email, and the moment of
// the event expressed as seconds since the epoch plus a zone offset.
type Signature struct {
	Name     string
	Email    string
	Seconds  int64
	Timezone string // "+HHMM" or "-HHMM"
}

// CommitObj is a tree snapshot plus history and provenance.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    Signature
	Committer Signature
	Message   string
}
