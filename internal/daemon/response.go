package daemon

type responseWrapper struct {
	Data    any  `json:"data"`
	Success bool `json:"success"`
}

type errorWrapper struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

func ok(data any) responseWrapper {
	return responseWrapper{Data: data, Success: true}
}

func fail(msg string) errorWrapper {
	return errorWrapper{Message: msg, Success: false}
}
