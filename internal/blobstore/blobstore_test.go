package blobstore

import "testing"

func TestKeyBuilders(t *testing.T) {
	if got := YouTubeTranscriptKey("abc123"); got != "youtube/abc123/transcript.txt" {
		t.Errorf("got %q", got)
	}
	if got := YouTubeMetadataKey("abc123"); got != "youtube/abc123/metadata.json" {
		t.Errorf("got %q", got)
	}
	if got := WebContentKey("deadbeef"); got != "web/deadbeef/content.md" {
		t.Errorf("got %q", got)
	}
	if got := UploadedDocumentKey("document", "c1", "notes.pdf"); got != "document/c1/notes.pdf" {
		t.Errorf("got %q", got)
	}
}
