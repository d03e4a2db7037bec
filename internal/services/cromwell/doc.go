// Package cromwell is the dispatcher's client for the Cromwell workflow
// engine REST API.
//
// It issues the two calls the dispatcher needs, a status/label query for
// startable workflows and a releaseHold per workflow, and translates engine
// responses into the services error markers: ErrEngineAuth for rejected
// credentials, ErrEngineUnavailable for transport and 5xx failures,
// ErrEngineProtocol for responses it cannot understand, and ErrEngineRejected
// when a workflow is no longer startable.
//
// Authentication is either HTTP basic or a service account token exchange
// (Cromwell-as-a-Service). Token auth drops its cached token and retries a
// call once when the engine rejects it.
package cromwell
