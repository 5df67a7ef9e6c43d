package sim

const MaxStars = 5

// RatingWidget is the five-star picker.
type RatingWidget struct {
	committed int
	hovered   int
	readonly  bool
}

func NewRatingWidget(committed int, readonly bool) *RatingWidget {
	if committed < 0 || committed > MaxStars {
		committed = 0
	}
	return &RatingWidget{committed: committed, readonly: readonly}
}

// Hover previews a level; out of range levels clear the preview.
func (w *RatingWidget) Hover(level int) {
	if w.readonly {
		return
	}
	if level < 1 || level > MaxStars {
		level = 0
	}
	w.hovered = level
}

func (w *RatingWidget) Leave() {
	if !w.readonly {
		w.hovered = 0
	}
}

// Click commits a level and reports whether the commit was accepted.
func (w *RatingWidget) Click(level int) bool {
	if w.readonly || level < 1 || level > MaxStars {
		return false
	}
	w.committed = level
	return true
}

func (w *RatingWidget) Committed() int { return w.committed }
func (w *RatingWidget) Hovered() int   { return w.hovered }
func (w *RatingWidget) ReadOnly() bool { return w.readonly }

// Displayed is the number of filled stars.
func (w *RatingWidget) Displayed() int {
	if w.hovered > w.committed {
		return w.hovered
	}
	return w.committed
}

// Stars lists the fill state of each star, left to right.
func (w *RatingWidget) Stars() []bool {
	n := w.Displayed()
	out := make([]bool, MaxStars)
	for i := range out {
		out[i] = i < n
	}
	return out
}
