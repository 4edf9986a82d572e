package coordinator

import (
	"github.com/pietro1412/fantacontratti/go/internal/models"
)

// Command names every mutating entry point of the coordinator.
type Command string

const (
	CmdSetOrder              Command = "setOrder"
	CmdGenerateBoard         Command = "generateBoard"
	CmdStartRubata           Command = "startRubata"
	CmdUpdateTimers          Command = "updateTimers"
	CmdPause                 Command = "pause"
	CmdResume                Command = "resume"
	CmdAdvance               Command = "advance"
	CmdGoBack                Command = "goBack"
	CmdCloseAuction          Command = "closeAuction"
	CmdCompleteRubata        Command = "completeRubata"
	CmdForceAllReady         Command = "forceAllReady"
	CmdForceAllAcknowledge   Command = "forceAllAcknowledge"
	CmdForceAllAppealAcks    Command = "forceAllAppealAcks"
	CmdForceAllReadyToResume Command = "forceAllReadyToResume"
	CmdDecideAppeal          Command = "decideAppeal"

	CmdSetReady                  Command = "setReady"
	CmdMakeOffer                 Command = "makeOffer"
	CmdBid                       Command = "bid"
	CmdAcknowledge               Command = "acknowledge"
	CmdSubmitAppeal              Command = "submitAppeal"
	CmdAcknowledgeAppealDecision Command = "acknowledgeAppealDecision"
	CmdMarkReadyToResume         Command = "markReadyToResume"
)

var adminCommands = map[Command]bool{
	CmdSetOrder:              true,
	CmdGenerateBoard:         true,
	CmdStartRubata:           true,
	CmdUpdateTimers:          true,
	CmdPause:                 true,
	CmdResume:                true,
	CmdAdvance:               true,
	CmdGoBack:                true,
	CmdCloseAuction:          true,
	CmdCompleteRubata:        true,
	CmdForceAllReady:         true,
	CmdForceAllAcknowledge:   true,
	CmdForceAllAppealAcks:    true,
	CmdForceAllReadyToResume: true,
	CmdDecideAppeal:          true,
}

// IsAdmin reports whether cmd needs a league admin.
func (c Command) IsAdmin() bool {
	return adminCommands[c]
}

// phaseCommands is the dispatch table: a command not listed for the current
// phase is rejected without touching the session.
var phaseCommands = map[models.Phase][]Command{
	models.PhaseWaiting: {CmdSetOrder, CmdGenerateBoard, CmdUpdateTimers},
	models.PhasePreview: {CmdSetOrder, CmdGenerateBoard, CmdStartRubata, CmdUpdateTimers},
	models.PhaseReadyCheck: {
		CmdSetReady, CmdForceAllReady, CmdAdvance, CmdUpdateTimers, CmdCompleteRubata,
	},
	models.PhaseOffering: {
		CmdMakeOffer, CmdPause, CmdAdvance, CmdGoBack, CmdUpdateTimers, CmdCompleteRubata,
	},
	models.PhaseAuctionReadyCheck: {
		CmdSetReady, CmdForceAllReady, CmdAdvance, CmdGoBack, CmdUpdateTimers, CmdCompleteRubata,
	},
	models.PhaseAuction: {
		CmdBid, CmdCloseAuction, CmdPause, CmdAdvance, CmdGoBack, CmdUpdateTimers, CmdCompleteRubata,
	},
	models.PhasePendingAck: {
		CmdAcknowledge, CmdSubmitAppeal, CmdForceAllAcknowledge, CmdAdvance, CmdGoBack,
		CmdUpdateTimers, CmdCompleteRubata,
	},
	models.PhaseAppealReview: {
		CmdDecideAppeal, CmdSubmitAppeal, CmdGoBack, CmdUpdateTimers, CmdCompleteRubata,
	},
	models.PhaseAwaitingAppealAck: {
		CmdAcknowledgeAppealDecision, CmdForceAllAppealAcks, CmdDecideAppeal, CmdSubmitAppeal,
		CmdAdvance, CmdGoBack, CmdUpdateTimers, CmdCompleteRubata,
	},
	models.PhaseAwaitingResume: {
		CmdMarkReadyToResume, CmdForceAllReadyToResume, CmdDecideAppeal, CmdSubmitAppeal,
		CmdAdvance, CmdGoBack, CmdUpdateTimers, CmdCompleteRubata,
	},
	models.PhasePaused:    {CmdResume, CmdGoBack, CmdUpdateTimers, CmdCompleteRubata},
	models.PhaseAborted:   {CmdGenerateBoard},
	models.PhaseCompleted: {},
}

// Allowed reports whether cmd may run while the session is in phase.
func Allowed(phase models.Phase, cmd Command) bool {
	for _, c := range phaseCommands[phase] {
		if c == cmd {
			return true
		}
	}
	return false
}

// appealPurposes are the gates the appeal flow itself opens.
var appealPurposes = map[models.GatePurpose]bool{
	models.PurposeAwaitingAppealAck: true,
	models.PurposeAwaitingResume:    true,
}
