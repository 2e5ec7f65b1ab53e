package reporter

// Reporter defines the interface for progress reporting across a CRF
// search's lifecycle: a reference/config summary at start, a stream of
// per-probe and per-sample progress events while C6-C8 run, and the final
// accepted CRF.
type Reporter interface {
	Hardware(summary HardwareSummary)
	SearchStarted(ref ReferenceSummary, cfg SearchConfigSummary)
	ProbeStarted(info ProbeStartedInfo)
	SampleProgress(progress SampleProgress)
	ProbeComplete(result ProbeResult)
	SearchComplete(result SearchResult)
	Warning(message string)
	Error(err ReporterError)
	Verbose(message string)
}

// NullReporter is a no-op reporter that discards all updates.
type NullReporter struct{}

func (NullReporter) Hardware(HardwareSummary)                            {}
func (NullReporter) SearchStarted(ReferenceSummary, SearchConfigSummary) {}
func (NullReporter) ProbeStarted(ProbeStartedInfo)                       {}
func (NullReporter) SampleProgress(SampleProgress)                       {}
func (NullReporter) ProbeComplete(ProbeResult)                           {}
func (NullReporter) SearchComplete(SearchResult)                         {}
func (NullReporter) Warning(string)                                      {}
func (NullReporter) Error(ReporterError)                                 {}
func (NullReporter) Verbose(string)                                      {}
