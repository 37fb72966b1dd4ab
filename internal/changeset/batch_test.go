package changeset

import (
	"testing"

	"shortbox/internal/comicinfo"
)

func fileWithConfidence(id string, group int, confidence float64) ChangeSet {
	cs := Compute(Input{
		FileID:     id,
		Filename:   id + ".cbz",
		GroupIndex: group,
		Confidence: confidence,
		Current:    comicinfo.Metadata{Publisher: "DC"},
		Proposed:   comicinfo.Metadata{Publisher: "DC Comics", Series: "Batman"},
	})
	return cs
}

func TestAcceptHighConfidenceTouchesOnlyQualifyingFiles(t *testing.T) {
	sets := []ChangeSet{
		fileWithConfidence("a", 0, 0.92),
		fileWithConfidence("b", 0, 0.8),
		fileWithConfidence("c", 0, 0.55),
	}
	untouched := sets[2].Clone()

	res := AcceptHighConfidence(sets, Filter{}, 0)
	if res.Affected != 2 {
		t.Fatalf("expected 2 affected files, got %+v", res)
	}
	for _, cs := range sets[:2] {
		if c := cs.Counts(); c.Approved != c.Changes {
			t.Fatalf("file %s not fully approved: %+v", cs.FileID, c)
		}
	}
	if sets[2].Counts().Approved != 0 || sets[2].Status != untouched.Status {
		t.Fatalf("low confidence file was modified: %+v", sets[2])
	}

	again := AcceptHighConfidence(sets, Filter{}, 0)
	if again.Affected != 0 {
		t.Fatalf("second run should affect nothing, got %+v", again)
	}
}

func TestBatchFailureDoesNotRollBackOthers(t *testing.T) {
	sets := []ChangeSet{
		fileWithConfidence("a", 0, 0.9),
		fileWithConfidence("b", 0, 0.9),
	}
	res := Batch(sets, Filter{}, func(c *ChangeSet) (bool, error) {
		if _, err := c.AcceptAll(); err != nil {
			return false, err
		}
		if c.FileID == "b" {
			return false, c.Approve(comicinfo.Field("Nope"), true)
		}
		return true, nil
	})
	if res.Affected != 1 || len(res.Failed) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if sets[0].Counts().Approved == 0 {
		t.Fatal("successful file lost its approvals")
	}
	if sets[1].Counts().Approved != 0 {
		t.Fatal("failed file should be left as it was")
	}
}

func TestRejectAllWithFilter(t *testing.T) {
	one := 1
	sets := []ChangeSet{
		fileWithConfidence("a", 0, 0.9),
		fileWithConfidence("b", 1, 0.9),
		fileWithConfidence("c", 1, 0.9),
	}
	sets[2].Reject()

	res := RejectAll(sets, Filter{GroupIndex: &one})
	if res.Matched != 2 || res.Affected != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if sets[0].Status == StatusRejected {
		t.Fatal("file outside the filter was rejected")
	}

	accepted := AcceptAll(sets, Filter{})
	if accepted.Affected != 1 {
		t.Fatalf("accept-all should skip rejected files, got %+v", accepted)
	}
}

func TestFilterQueryMatchesFilename(t *testing.T) {
	cs := fileWithConfidence("Batman 001", 0, 0.9)
	if !(Filter{Query: "batman"}).Match(cs) {
		t.Fatal("expected case-insensitive filename match")
	}
	if (Filter{Status: StatusMatched}).Match(cs) {
		t.Fatal("unmatched file passed a matched filter")
	}
}
