package main

import (
	"fmt"

	"github.com/horgh/irc"
)

// replies renders the outbound Reply union (§3) into wire messages. Exact
// textual phrasing is the codec/grammar layer's concern per §6; this is
// just which numeric/command to pick and which params to carry, mirroring
// the teacher's messageFromServer/messageClient split between server-origin
// and peer-origin replies.
type replies struct {
	serverName  string
	version     string
	createdDate string
	motd        string
}

func (r replies) encode(m irc.Message) string {
	text, err := m.Encode()
	if err != nil && err != irc.ErrTruncated {
		// Encode only fails on malformed input we construct ourselves; there is
		// nothing a caller could do differently, so fall back to a bare ERROR
		// line rather than silently dropping the reply.
		text, _ = irc.Message{Command: "ERROR", Params: []string{"internal encoding error"}}.Encode()
	}
	return text
}

func (r replies) fromServer(nick, command string, params ...string) string {
	allParams := append([]string{nick}, params...)
	return r.encode(irc.Message{Prefix: r.serverName, Command: command, Params: allParams})
}

// fromPeer renders a reply that appears to come from another client, e.g. a
// PRIVMSG/JOIN/PART/QUIT fanned out on that client's behalf. source is the
// full nick!user@host the client registered with, not a bare nick.
func (r replies) fromPeer(source, command string, params ...string) string {
	return r.encode(irc.Message{Prefix: source, Command: command, Params: params})
}

func (r replies) welcome(nick string) string {
	return r.fromServer(nick, irc.ReplyWelcome,
		fmt.Sprintf("Welcome to the Internet Relay Network %s", nick))
}

func (r replies) yourHost(nick string) string {
	return r.fromServer(nick, "002",
		fmt.Sprintf("Your host is %s, running version %s", r.serverName, r.version))
}

func (r replies) created(nick string) string {
	return r.fromServer(nick, "003",
		fmt.Sprintf("This server was created %s", r.createdDate))
}

func (r replies) myInfo(nick string) string {
	return r.fromServer(nick, "004", r.serverName, r.version)
}

func (r replies) lusers(nick string, numClients, numChannels int) []string {
	return []string{
		r.fromServer(nick, "251",
			fmt.Sprintf("There are %d users on 1 server.", numClients)),
		r.fromServer(nick, "254",
			fmt.Sprintf("%d", numChannels), "channels formed"),
		r.fromServer(nick, "255",
			fmt.Sprintf("I have %d clients", numClients)),
	}
}

func (r replies) motdLines(nick string) []string {
	return []string{
		r.fromServer(nick, "375", fmt.Sprintf("- %s Message of the day -", r.serverName)),
		r.fromServer(nick, "372", fmt.Sprintf("- %s", r.motd)),
		r.fromServer(nick, "376", "End of MOTD command"),
	}
}

func (r replies) namReply(nick, channel string, names []string) string {
	joined := ""
	for i, n := range names {
		if i > 0 {
			joined += " "
		}
		joined += n
	}
	return r.fromServer(nick, "353", "=", channel, joined)
}

func (r replies) endOfNames(nick, channel string) string {
	return r.fromServer(nick, "366", channel, "End of NAMES list")
}

func (r replies) pong(token string) string {
	return r.encode(irc.Message{Command: "PONG", Params: []string{token}})
}

func (r replies) ping(token string) string {
	return r.encode(irc.Message{Prefix: r.serverName, Command: "PING", Params: []string{token}})
}

func (r replies) privmsg(fromHostmask, target, text string) string {
	return r.fromPeer(fromHostmask, "PRIVMSG", target, text)
}

func (r replies) join(fromHostmask, channel string) string {
	return r.fromPeer(fromHostmask, "JOIN", channel)
}

func (r replies) part(fromHostmask, channel, reason string) string {
	if reason == "" {
		return r.fromPeer(fromHostmask, "PART", channel)
	}
	return r.fromPeer(fromHostmask, "PART", channel, reason)
}

func (r replies) quit(fromHostmask, reason string) string {
	return r.fromPeer(fromHostmask, "QUIT", reason)
}

func (r replies) errorLine(text string) string {
	return r.encode(irc.Message{Command: "ERROR", Params: []string{text}})
}

func (r replies) nickCollision(nick string) string {
	return r.fromServer("*", "436", nick, "Nickname is already in use")
}

func (r replies) noSuchNick(recipientNick, target string) string {
	return r.fromServer(recipientNick, "401", target, "No such nick/channel")
}

func (r replies) noSuchChannel(nick, channel string) string {
	return r.fromServer(nick, "403", channel, "No such channel")
}

