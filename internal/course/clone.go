package course

// Clone returns a deep copy of the course graph.
func (c *Course) Clone() *Course {
	if c == nil {
		return nil
	}
	out := *c
	out.TotalDurationSeconds = clonePtr(c.TotalDurationSeconds)
	if c.Resume != nil {
		marker := *c.Resume
		out.Resume = &marker
	}
	out.Chapters = make([]*Chapter, 0, len(c.Chapters))
	for _, ch := range c.Chapters {
		out.Chapters = append(out.Chapters, ch.Clone())
	}
	return &out
}

// Clone returns a deep copy of the chapter and its parts.
func (ch *Chapter) Clone() *Chapter {
	if ch == nil {
		return nil
	}
	out := *ch
	out.Order = clonePtr(ch.Order)
	out.Parts = make([]*Part, 0, len(ch.Parts))
	for _, p := range ch.Parts {
		out.Parts = append(out.Parts, p.Clone())
	}
	return &out
}

// Clone returns a copy of the part.
func (p *Part) Clone() *Part {
	if p == nil {
		return nil
	}
	out := *p
	out.Index = clonePtr(p.Index)
	out.DurationSeconds = clonePtr(p.DurationSeconds)
	return &out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
