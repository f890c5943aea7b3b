package http

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/codesync/codesync-server/internal/auth"
	"github.com/codesync/codesync-server/internal/presence"
	"github.com/codesync/codesync-server/internal/proto"
)

const (
	errCodeBadRequest    = "bad_request"
	errCodeNotAuthorized = "not_authorized"
	errCodeRateLimited   = "rate_limited"
	errCodeInvalidType   = "invalid_message"
)

// dispatch maps one inbound frame onto the presence layer. It returns a
// protocol error for frames the client can correct, and a hard error only for
// malformed payloads that should terminate the connection.
func (h *WSHandler) dispatch(ctx context.Context, claims *auth.Claims, sess *presence.Session, inbound proto.Inbound) (*proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom:
		var d proto.JoinRoomData
		if err := json.Unmarshal(inbound.Data, &d); err != nil {
			return nil, err
		}
		if d.Room == "" {
			return &proto.Error{Code: errCodeBadRequest, Msg: "room is required"}, nil
		}
		if !h.authorizedToJoin(ctx, d.Room, claims) {
			return &proto.Error{Code: errCodeNotAuthorized, Msg: "not a member of this project"}, nil
		}
		presence.Send(h.mgr.Join(sess, d.Room, memberIdentity(claims, d.UserID, d.UserName)))
		return nil, nil

	case proto.InboundTypeLeaveRoom:
		var d proto.LeaveRoomData
		if err := json.Unmarshal(inbound.Data, &d); err != nil {
			return nil, err
		}
		if d.Room == "" {
			return &proto.Error{Code: errCodeBadRequest, Msg: "room is required"}, nil
		}
		presence.Send(h.mgr.Leave(sess, d.Room, memberIdentity(claims, d.UserID, d.UserName)))
		return nil, nil

	case proto.InboundTypeContentEdit:
		var d proto.ContentEditData
		if err := json.Unmarshal(inbound.Data, &d); err != nil {
			return nil, err
		}
		if d.Room == "" {
			return &proto.Error{Code: errCodeBadRequest, Msg: "room is required"}, nil
		}
		presence.Send(h.router.ContentEdit(sess, presence.ContentEdit{
			Room:    d.Room,
			FileID:  d.FileID,
			Content: d.Content,
			UserID:  fallbackUserID(claims, d.UserID),
		}))
		return nil, nil

	case proto.InboundTypeCursorMove:
		var d proto.CursorMoveData
		if err := json.Unmarshal(inbound.Data, &d); err != nil {
			return nil, err
		}
		if d.Room == "" {
			return &proto.Error{Code: errCodeBadRequest, Msg: "room is required"}, nil
		}
		m := memberIdentity(claims, d.UserID, d.UserName)
		presence.Send(h.router.CursorMove(sess, presence.CursorMove{
			Room:     d.Room,
			FileID:   d.FileID,
			Position: d.Position,
			UserID:   m.UserID,
			UserName: m.UserName,
		}))
		return nil, nil

	case proto.InboundTypeChatMessage:
		var d proto.ChatMessageData
		if err := json.Unmarshal(inbound.Data, &d); err != nil {
			return nil, err
		}
		if d.Room == "" {
			return &proto.Error{Code: errCodeBadRequest, Msg: "room is required"}, nil
		}
		m := memberIdentity(claims, d.UserID, d.UserName)
		presence.Send(h.router.Chat(sess, presence.Chat{
			Room:     d.Room,
			Message:  d.Message,
			UserID:   m.UserID,
			UserName: m.UserName,
		}))
		return nil, nil

	case proto.InboundTypeTypingStart:
		var d proto.TypingData
		if err := json.Unmarshal(inbound.Data, &d); err != nil {
			return nil, err
		}
		if d.Room == "" {
			return &proto.Error{Code: errCodeBadRequest, Msg: "room is required"}, nil
		}
		m := memberIdentity(claims, d.UserID, d.UserName)
		presence.Send(h.router.TypingStart(sess, d.Room, m.UserID, m.UserName))
		return nil, nil

	case proto.InboundTypeTypingStop:
		var d proto.TypingData
		if err := json.Unmarshal(inbound.Data, &d); err != nil {
			return nil, err
		}
		if d.Room == "" {
			return &proto.Error{Code: errCodeBadRequest, Msg: "room is required"}, nil
		}
		presence.Send(h.router.TypingStop(sess, d.Room, fallbackUserID(claims, d.UserID)))
		return nil, nil

	case proto.InboundTypeFileCreated:
		var d proto.FileCreatedData
		if err := json.Unmarshal(inbound.Data, &d); err != nil {
			return nil, err
		}
		if d.Room == "" {
			return &proto.Error{Code: errCodeBadRequest, Msg: "room is required"}, nil
		}
		presence.Send(h.router.FileCreated(sess, d.Room, d.File))
		return nil, nil

	case proto.InboundTypeFileDeleted:
		var d proto.FileDeletedData
		if err := json.Unmarshal(inbound.Data, &d); err != nil {
			return nil, err
		}
		if d.Room == "" {
			return &proto.Error{Code: errCodeBadRequest, Msg: "room is required"}, nil
		}
		presence.Send(h.router.FileDeleted(sess, d.Room, d.FileID))
		return nil, nil

	case proto.InboundTypeFileRenamed:
		var d proto.FileRenamedData
		if err := json.Unmarshal(inbound.Data, &d); err != nil {
			return nil, err
		}
		if d.Room == "" {
			return &proto.Error{Code: errCodeBadRequest, Msg: "room is required"}, nil
		}
		presence.Send(h.router.FileRenamed(sess, d.Room, d.FileID, d.NewName))
		return nil, nil

	default:
		return &proto.Error{Code: errCodeInvalidType, Msg: "unknown message type"}, nil
	}
}

// authorizedToJoin checks the durable store before a connection is admitted
// to a project room. The presence layer itself trusts any join it receives.
func (h *WSHandler) authorizedToJoin(ctx context.Context, room string, claims *auth.Claims) bool {
	project, err := h.store.GetProject(ctx, room)
	if err != nil {
		return false
	}
	if project.IsPublic || project.OwnerID == claims.UserID {
		return true
	}
	_, ok, err := h.store.MemberRole(ctx, room, claims.UserID)
	if err != nil {
		return false
	}
	return ok
}

// memberIdentity builds the identity announced to the room. Payload fields
// win; the token claims fill in whatever the client left out.
func memberIdentity(claims *auth.Claims, userID, userName string) presence.Member {
	m := presence.Member{UserID: userID, UserName: userName}
	if m.UserID == "" {
		m.UserID = strconv.FormatInt(claims.UserID, 10)
	}
	if m.UserName == "" {
		m.UserName = claims.DisplayName
	}
	if m.UserName == "" {
		m.UserName = claims.Username
	}
	return m
}

func fallbackUserID(claims *auth.Claims, userID string) string {
	if userID != "" {
		return userID
	}
	return strconv.FormatInt(claims.UserID, 10)
}

func protoMembers(members []presence.Member) []proto.Member {
	out := make([]proto.Member, 0, len(members))
	for _, m := range members {
		out = append(out, proto.Member{UserID: m.UserID, UserName: m.UserName})
	}
	return out
}

// outboundFromEvent converts a presence event into its wire representation.
func outboundFromEvent(event presence.Event) proto.Outbound {
	switch event.Kind {
	case presence.KindMemberJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMemberJoined,
			Data: proto.MemberEvent{
				Room:     event.Room,
				UserID:   event.User.UserID,
				UserName: event.User.UserName,
				Members:  protoMembers(event.Members),
			},
		}
	case presence.KindMemberLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMemberLeft,
			Data: proto.MemberEvent{
				Room:     event.Room,
				UserID:   event.User.UserID,
				UserName: event.User.UserName,
				Members:  protoMembers(event.Members),
			},
		}
	case presence.KindContentUpdate:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventContentUpdate,
			Data: proto.ContentUpdateEvent{
				Room:      event.Room,
				FileID:    event.FileID,
				Content:   event.Content,
				UserID:    event.User.UserID,
				Timestamp: event.Timestamp,
			},
		}
	case presence.KindCursorUpdate:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventCursorUpdate,
			Data: proto.CursorUpdateEvent{
				Room:     event.Room,
				FileID:   event.FileID,
				Position: event.Position,
				UserID:   event.User.UserID,
				UserName: event.User.UserName,
			},
		}
	case presence.KindChatReceived:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventChatReceived,
			Data: proto.ChatReceivedEvent{
				Room:      event.Room,
				Message:   event.Message,
				UserID:    event.User.UserID,
				UserName:  event.User.UserName,
				Timestamp: event.Timestamp,
			},
		}
	case presence.KindTypingIndicator:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventTypingIndicator,
			Data: proto.TypingEvent{
				Room:     event.Room,
				UserID:   event.User.UserID,
				UserName: event.User.UserName,
			},
		}
	case presence.KindTypingCleared:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventTypingCleared,
			Data: proto.TypingEvent{
				Room:   event.Room,
				UserID: event.User.UserID,
			},
		}
	case presence.KindFileAdded:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventFileAdded,
			Data: proto.FileAddedEvent{
				Room: event.Room,
				File: event.FileDesc,
			},
		}
	case presence.KindFileRemoved:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventFileRemoved,
			Data: proto.FileRemovedEvent{
				Room:   event.Room,
				FileID: event.FileID,
			},
		}
	case presence.KindFileNameChanged:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventFileNameChanged,
			Data: proto.FileNameChangedEvent{
				Room:    event.Room,
				FileID:  event.FileID,
				NewName: event.NewName,
			},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
