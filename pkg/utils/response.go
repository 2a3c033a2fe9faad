package utils

type ResponseData struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded lets REST handlers bail out with a pkgError value; the
// Recovery middleware turns it into the response.
func PanicIfNeeded(err any) {
	if err != nil {
		panic(err)
	}
}
