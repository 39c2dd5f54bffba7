package config

import "github.com/mcluseau/kingress/internal/endpoint"

// annotationPrefixes are checked in order; the first prefix that carries a
// given key wins over the same key under a later prefix.
var annotationPrefixes = []string{
	"ingress.kubernetes.io/",
	"nginx.ingress.kubernetes.io/",
}

// optionsFromAnnotations derives EndpointOptions from an ingress object's
// annotation map. Unknown or absent keys default to false.
func optionsFromAnnotations(annotations map[string]string) endpoint.Options {
	var opts endpoint.Options
	if annotationBool(annotations, "secure-backends") {
		opts.SecureBackends = true
		opts.SSLRedirect = true
	}
	if annotationBool(annotations, "http2") {
		opts.HTTP2 = true
	}
	return opts
}

func annotationBool(annotations map[string]string, key string) bool {
	for _, prefix := range annotationPrefixes {
		if v, ok := annotations[prefix+key]; ok {
			return v == "true"
		}
	}
	return false
}
