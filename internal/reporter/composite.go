package reporter

// CompositeReporter fans out events to multiple reporters.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter creates a composite reporter.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: reporters}
}

func (c *CompositeReporter) Hardware(summary HardwareSummary) {
	for _, r := range c.reporters {
		r.Hardware(summary)
	}
}

func (c *CompositeReporter) SearchStarted(ref ReferenceSummary, cfg SearchConfigSummary) {
	for _, r := range c.reporters {
		r.SearchStarted(ref, cfg)
	}
}

func (c *CompositeReporter) ProbeStarted(info ProbeStartedInfo) {
	for _, r := range c.reporters {
		r.ProbeStarted(info)
	}
}

func (c *CompositeReporter) SampleProgress(progress SampleProgress) {
	for _, r := range c.reporters {
		r.SampleProgress(progress)
	}
}

func (c *CompositeReporter) ProbeComplete(result ProbeResult) {
	for _, r := range c.reporters {
		r.ProbeComplete(result)
	}
}

func (c *CompositeReporter) SearchComplete(result SearchResult) {
	for _, r := range c.reporters {
		r.SearchComplete(result)
	}
}

func (c *CompositeReporter) Warning(message string) {
	for _, r := range c.reporters {
		r.Warning(message)
	}
}

func (c *CompositeReporter) Error(err ReporterError) {
	for _, r := range c.reporters {
		r.Error(err)
	}
}

func (c *CompositeReporter) Verbose(message string) {
	for _, r := range c.reporters {
		r.Verbose(message)
	}
}
