package domain

// Domain contains core models shared across packages.

// Post is one candidate image fetched from a source during a cycle.
type Post struct {
	ID     string
	URL    string
	Width  int
	Height int
	NSFW   bool
	Source string
}

// Obligation pairs a target with a post that passed every filter and is
// queued for download.
type Obligation struct {
	TargetName string
	TargetPath string
	Post       Post
}
