package goemitter

import (
	"fmt"

	"github.com/mark3labs/awsgen/internal/model"
)

// interceptors lists the request middlewares a service needs, keyed by
// endpoint prefix. Each entry renders Go expressions of type
// awsrt.Middleware.
var interceptors = map[string]func(*model.ServiceModel) []string{
	"s3": func(*model.ServiceModel) []string {
		return []string{"awsrt.S3RequestMiddleware{}"}
	},
	"glacier": func(svc *model.ServiceModel) []string {
		return []string{fmt.Sprintf("awsrt.GlacierRequestMiddleware{APIVersion: %q}", svc.APIVersion)}
	},
}

func middlewaresFor(svc *model.ServiceModel) []string {
	if fn, ok := interceptors[svc.EndpointPrefix]; ok {
		return fn(svc)
	}
	return nil
}
