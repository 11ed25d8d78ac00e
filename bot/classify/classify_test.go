package classify

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestClassifyDocument(t *testing.T) {
	m := &tele.Message{
		Document: &tele.Document{
			File:     tele.File{FileID: "doc-1"},
			FileName: "report.pdf",
		},
	}
	res := Classify(m)
	if res.Kind != Document {
		t.Fatalf("kind = %s, expected document", res.Kind)
	}
	if res.DisplayName != "report.pdf" {
		t.Fatalf("display name = %q", res.DisplayName)
	}
	if res.File == nil || res.File.FileID != "doc-1" {
		t.Fatal("expected document download handle")
	}
}

func TestClassifyVideoPlaceholderName(t *testing.T) {
	m := &tele.Message{
		Video: &tele.Video{File: tele.File{FileID: "vid-1"}},
	}
	res := Classify(m)
	if res.Kind != Video {
		t.Fatalf("kind = %s, expected video", res.Kind)
	}
	if res.DisplayName != "Video file." {
		t.Fatalf("display name = %q, expected fixed placeholder", res.DisplayName)
	}
	if res.File == nil || res.File.FileID != "vid-1" {
		t.Fatal("expected video download handle")
	}
}

func TestClassifyPhotoHasNoHandle(t *testing.T) {
	m := &tele.Message{
		Photo: &tele.Photo{File: tele.File{FileID: "pho-1"}},
	}
	res := Classify(m)
	if res.Kind != Photo {
		t.Fatalf("kind = %s, expected photo", res.Kind)
	}
	if res.File != nil {
		t.Fatal("photo must never expose a download handle")
	}
}

func TestClassifyPrecedenceDocumentFirst(t *testing.T) {
	// First match wins: document > video > photo.
	m := &tele.Message{
		Document: &tele.Document{File: tele.File{FileID: "doc"}, FileName: "a.bin"},
		Video:    &tele.Video{File: tele.File{FileID: "vid"}},
		Photo:    &tele.Photo{File: tele.File{FileID: "pho"}},
	}
	if res := Classify(m); res.Kind != Document {
		t.Fatalf("kind = %s, expected document to win", res.Kind)
	}
	m.Document = nil
	if res := Classify(m); res.Kind != Video {
		t.Fatalf("kind = %s, expected video to win over photo", res.Kind)
	}
}

func TestClassifyUnsupported(t *testing.T) {
	if res := Classify(&tele.Message{Text: "hello"}); res.Kind != Unsupported {
		t.Fatalf("kind = %s, expected unsupported", res.Kind)
	}
	if res := Classify(nil); res.Kind != Unsupported {
		t.Fatalf("kind = %s, expected unsupported for nil message", res.Kind)
	}
}
