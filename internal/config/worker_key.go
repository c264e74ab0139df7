package config

type WorkerKeyStruct struct {
	PersistProgressQueue string
	ResultEventsQueue    string
}

var WorkerKey = &WorkerKeyStruct{
	PersistProgressQueue: "persist_progress_queue",
	ResultEventsQueue:    "result_events_queue",
}
