package config

type WorkerKeyStruct struct {
	RegistrationEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	RegistrationEventsQueue: "registration_events_queue",
}
