package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const RubataServiceName = "rubata.v1.RubataService"

// Procedure returns the full path of a RubataService method.
func Procedure(method string) string {
	return "/" + RubataServiceName + "/" + method
}

// NewRubataServiceHandler builds an HTTP handler for every RubataService
// procedure. It returns the path to mount the handler on.
func NewRubataServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	mux := http.NewServeMux()

	mux.Handle(Procedure("CreateSession"), connect.NewUnaryHandler(Procedure("CreateSession"), svc.CreateSession, opts...))
	mux.Handle(Procedure("GetStatus"), connect.NewUnaryHandler(Procedure("GetStatus"), svc.GetStatus, opts...))
	mux.Handle(Procedure("SetOrder"), connect.NewUnaryHandler(Procedure("SetOrder"), svc.SetOrder, opts...))
	mux.Handle(Procedure("UpdateTimers"), connect.NewUnaryHandler(Procedure("UpdateTimers"), svc.UpdateTimers, opts...))
	mux.Handle(Procedure("DecideAppeal"), connect.NewUnaryHandler(Procedure("DecideAppeal"), svc.DecideAppeal, opts...))
	mux.Handle(Procedure("Bid"), connect.NewUnaryHandler(Procedure("Bid"), svc.Bid, opts...))
	mux.Handle(Procedure("Acknowledge"), connect.NewUnaryHandler(Procedure("Acknowledge"), svc.Acknowledge, opts...))
	mux.Handle(Procedure("SubmitAppeal"), connect.NewUnaryHandler(Procedure("SubmitAppeal"), svc.SubmitAppeal, opts...))

	// commands that carry nothing beyond session and actor
	simple := map[string]func(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error){
		"GenerateBoard":             svc.GenerateBoard,
		"StartRubata":               svc.StartRubata,
		"Pause":                     svc.Pause,
		"Resume":                    svc.Resume,
		"Advance":                   svc.Advance,
		"GoBack":                    svc.GoBack,
		"CloseAuction":              svc.CloseAuction,
		"CompleteRubata":            svc.CompleteRubata,
		"ForceAllReady":             svc.ForceAllReady,
		"ForceAllAcknowledge":       svc.ForceAllAcknowledge,
		"ForceAllAppealAcks":        svc.ForceAllAppealAcks,
		"ForceAllReadyToResume":     svc.ForceAllReadyToResume,
		"SetReady":                  svc.SetReady,
		"MakeOffer":                 svc.MakeOffer,
		"AcknowledgeAppealDecision": svc.AcknowledgeAppealDecision,
		"MarkReadyToResume":         svc.MarkReadyToResume,
	}
	for method, fn := range simple {
		mux.Handle(Procedure(method), connect.NewUnaryHandler(Procedure(method), fn, opts...))
	}

	return "/" + RubataServiceName + "/", mux
}
