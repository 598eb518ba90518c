package config

type WorkerKeyStruct struct {
	PersistAnswersQueue  string
	ViolationEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:  "persist_answers_queue",
	ViolationEventsQueue: "violation_events_queue",
}
