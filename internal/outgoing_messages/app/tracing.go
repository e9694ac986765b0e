package app

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/edigateway/golang_services/internal/outgoing_messages/app")
