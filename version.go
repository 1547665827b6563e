package eventstore

// InstrumentationVersion is reported by the otel decorators.
const InstrumentationVersion = "0.1.0"
