package domain

// PeekResult is either empty or names the bundle the actor should receive next.
type PeekResult struct {
	bundleID BundleID
	found    bool
}

func EmptyPeekResult() PeekResult { return PeekResult{} }

func FoundPeekResult(id BundleID) PeekResult { return PeekResult{bundleID: id, found: true} }

func (r PeekResult) BundleID() (BundleID, bool) { return r.bundleID, r.found }

func (r PeekResult) IsEmpty() bool { return !r.found }
