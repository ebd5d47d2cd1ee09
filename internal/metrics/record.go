package metrics

import "time"

// PDFRendered records a PDF render and its duration.
func PDFRendered(engine string, duration time.Duration, err error) {
	PDFRendersTotal.WithLabelValues(engine, status(err)).Inc()
	if err == nil {
		PDFRenderDuration.WithLabelValues(engine).Observe(duration.Seconds())
	}
}

// EmailSent records the outcome of a notification email.
func EmailSent(kind string, err error) {
	EmailsSent.WithLabelValues(kind, status(err)).Inc()
}

// Decision records the outcome of a validation decision.
func Decision(outcome string) {
	ValidationDecisions.WithLabelValues(outcome).Inc()
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
