package network

import (
	"fmt"
	"strings"
)

// Server reply vocabulary. Clients match on these prefixes.
const (
	MsgRegisterOK      = "REGISTER_OK"
	MsgUserExists      = "USER_EXISTS"
	MsgLoginOK         = "LOGIN_OK"
	MsgInvalidLogin    = "INVALID_LOGIN"
	MsgAlreadyLoggedIn = "ALREADY_LOGGED_IN"
	MsgServerFull      = "SERVER_FULL"
	MsgInvalidFormat   = "INVALID_FORMAT"
	MsgNameTooLong     = "USERNAME_OR_PASSWORD_TOO_LONG"
	MsgInvalidCommand  = "INVALID_COMMAND"
	MsgUnknownCommand  = "UNKNOWN_COMMAND"

	MsgInvalidInviteFormat  = "INVALID_INVITE_FORMAT"
	MsgInvalidAcceptFormat  = "INVALID_ACCEPT_FORMAT"
	MsgInvalidDeclineFormat = "INVALID_DECLINE_FORMAT"
	MsgPlayerNotAvailable   = "PLAYER_NOT_AVAILABLE"

	MsgYourTurn      = "YOUR_TURN"
	MsgGameOverDraw  = "GAME_OVER: DRAW"
	MsgReturnToLobby = "RETURN_TO_LOBBY"
	MsgGoodbye       = "GOODBYE"

	LobbyEmpty = "No players available"

	// Usernames and passwords longer than this are rejected at the handshake.
	MaxNameLen = 63
)

func FormatLobby(usernames []string) string {
	if len(usernames) == 0 {
		return "LOBBY:" + LobbyEmpty
	}
	return "LOBBY:" + strings.Join(usernames, ",")
}

func FormatInviteFrom(user string) string {
	return fmt.Sprintf("INVITE_FROM %s", user)
}

func FormatInviteSent(target string) string {
	return fmt.Sprintf("INVITE_SENT to %s", target)
}

func FormatInviteDeclinedBy(user string) string {
	return fmt.Sprintf("INVITE_DECLINED_BY %s", user)
}

func FormatGameStart(player int, mark string) string {
	return fmt.Sprintf("GAME_START: YOU_ARE_PLAYER_%d (%s)", player, mark)
}

func FormatMoveMade(user string, position int) string {
	return fmt.Sprintf("MOVE_MADE: %s played position %d", user, position)
}

func FormatInvalidMove(reason string) string {
	return fmt.Sprintf("INVALID_MOVE: %s", reason)
}

func FormatGameOverWin(player int, user string) string {
	return fmt.Sprintf("GAME_OVER: PLAYER_%d_WINS (%s wins!)", player, user)
}

func FormatOpponentTimeout(user string) string {
	return fmt.Sprintf("OPPONENT_TIMEOUT: %s failed to move in time. YOU_WIN!", user)
}

func FormatTimeout() string {
	return "TIMEOUT: You failed to move in time. YOU_LOSE!"
}

func FormatOpponentDisconnected(user string) string {
	return fmt.Sprintf("OPPONENT_DISCONNECTED: %s left the game. YOU_WIN!", user)
}
