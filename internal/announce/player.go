package announce

import "context"

// Artifact is a resolved, playable announcement.
type Artifact struct {
	Key         string
	Text        string
	Audio       []byte
	URL         string
	ContentType string
}

// Player renders one repetition of an artifact on the shared audio channel
// and blocks until it finishes or ctx expires. Only the pipeline calls Play;
// nothing else may touch the channel.
type Player interface {
	Play(ctx context.Context, a Artifact) error
}
