package room

// Logging convention in the `room` package, all through glog:
// Info:
//     abnormal but handled events. Silent on normal operation.
//     this includes:
//     - transport errors and unexpected channel closes
//     - failed directory, suggestion and run requests
// Warning:
//     recovered panics from event handlers
// V(1):
//     session lifecycle (open, connected, close)
// V(2):
//     per event tracing, tagged so it can be filtered
//     - [c] channel send/receive
//     - [s] suggestion debounce, request, response, drop
//     - [r] run request, response, drop
//     - [session] orchestrator events
