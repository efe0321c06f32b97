package aggregate

// Builder assembles a Config fluently. It is a convenience over literal
// construction, in the style of:
//
//	cfg := aggregate.NewBuilder().Percentile("latency_ms", 0.95).GroupBy("user").Build()
type Builder struct {
	cfg Config
}

// NewBuilder starts an empty builder; the zero config counts events.
func NewBuilder() *Builder {
	return &Builder{cfg: Config{Type: TypeCount}}
}

// Count selects the count reduction.
func (b *Builder) Count() *Builder {
	b.cfg.Type = TypeCount
	b.cfg.Field = ""
	return b
}

// Sum selects the sum reduction over field.
func (b *Builder) Sum(field string) *Builder {
	b.cfg.Type = TypeSum
	b.cfg.Field = field
	return b
}

// Avg selects the mean reduction over field.
func (b *Builder) Avg(field string) *Builder {
	b.cfg.Type = TypeAvg
	b.cfg.Field = field
	return b
}

// Percentile selects the nearest-rank percentile reduction over field.
// p is in [0,1].
func (b *Builder) Percentile(field string, p float64) *Builder {
	b.cfg.Type = TypePercentile
	b.cfg.Field = field
	b.cfg.Percentile = p
	return b
}

// GroupBy sets the grouping fields, in the order given.
func (b *Builder) GroupBy(fields ...string) *Builder {
	b.cfg.GroupBy = fields
	return b
}

// Build returns the assembled configuration.
func (b *Builder) Build() Config {
	return b.cfg
}
