package qos

// Builder assembles a Policies bundle fluently.
type Builder struct {
	p Policies
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Reliability(r Reliability) *Builder {
	b.p.Reliability = &r
	return b
}

func (b *Builder) Durability(d DurabilityKind) *Builder {
	b.p.Durability = &d
	return b
}

func (b *Builder) History(h History) *Builder {
	b.p.History = &h
	return b
}

func (b *Builder) Deadline(d Deadline) *Builder {
	b.p.Deadline = &d
	return b
}

func (b *Builder) LatencyBudget(l LatencyBudget) *Builder {
	b.p.LatencyBudget = &l
	return b
}

func (b *Builder) Ownership(o OwnershipKind) *Builder {
	b.p.Ownership = &o
	return b
}

func (b *Builder) Liveliness(l Liveliness) *Builder {
	b.p.Liveliness = &l
	return b
}

func (b *Builder) TimeBasedFilter(t TimeBasedFilter) *Builder {
	b.p.TimeBasedFilter = &t
	return b
}

func (b *Builder) Presentation(pr Presentation) *Builder {
	b.p.Presentation = &pr
	return b
}

func (b *Builder) DestinationOrder(d DestinationOrderKind) *Builder {
	b.p.DestinationOrder = &d
	return b
}

func (b *Builder) ResourceLimits(r ResourceLimits) *Builder {
	b.p.ResourceLimits = &r
	return b
}

func (b *Builder) Lifespan(l Lifespan) *Builder {
	b.p.Lifespan = &l
	return b
}

func (b *Builder) Build() Policies {
	return b.p
}
