// Package app hosts the application services built on top of the metadata
// and object layers: users and groups, pools, favorites, tasks, saved
// queries, views, business rules and sync groups. All of them follow the
// same convention: entities are addressed by node id and a missing entity
// fails with the ApplicationObjectNotFound kind.
package app

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/netgrid-io/netgrid/internal/blob"
	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
	"github.com/netgrid-io/netgrid/internal/meta"
	"github.com/netgrid-io/netgrid/internal/object"
)

// Services bundles the application-layer operations and their collaborators.
type Services struct {
	store        *graph.Store
	meta         *meta.Manager
	objects      *object.Mapper
	blobs        *blob.Store
	logger       *zap.Logger
	enforceRules bool
}

// Config carries the application-layer switches.
type Config struct {
	// EnforceBusinessRules turns the rule engine's default-deny on. When
	// false, relationship checks pass without consulting rules.
	EnforceBusinessRules bool
}

// NewServices wires the application services.
func NewServices(store *graph.Store, metaMgr *meta.Manager, objects *object.Mapper, blobs *blob.Store, cfg Config, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Services{
		store:        store,
		meta:         metaMgr,
		objects:      objects,
		blobs:        blobs,
		logger:       logger,
		enforceRules: cfg.EnforceBusinessRules,
	}
}

// User is the account record the engine needs for existence checks and
// session validation.
type User struct {
	ID        int64
	Name      string
	FirstName string
	LastName  string
	Enabled   bool
}

// CreateUser registers an account. User names are unique; concurrent
// creations of the same name are serialized by the storage index so exactly
// one succeeds.
func (s *Services) CreateUser(ctx context.Context, name, password, firstName, lastName string) (int64, error) {
	if name == "" {
		return 0, errs.InvalidArgument("user name can not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.store.Update(ctx, func(tx *graph.Tx) error {
		if _, found, err := tx.IndexGet(graph.LabelUsers, graph.IndexKeyName, name); err != nil {
			return err
		} else if found {
			return errs.InvalidArgument("a user named %s already exists", name)
		}
		id, err = tx.CreateNode(graph.LabelUsers)
		if err != nil {
			return err
		}
		now := time.Now().Unix()
		props := map[string]graph.Value{
			"name":         graph.Text(name),
			"password":     graph.Text(string(hash)),
			"firstName":    graph.Text(firstName),
			"lastName":     graph.Text(lastName),
			"enabled":      graph.Text("true"),
			"creationDate": graph.Number(strconv.FormatInt(now, 10), float64(now)),
		}
		if err := tx.SetProperties(id, props); err != nil {
			return err
		}
		err = tx.IndexAdd(graph.LabelUsers, graph.IndexKeyName, name, id)
		return graph.AsInvalidArgument(err, "a user named %s already exists", name)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("user created", zap.String("user", name))
	return id, nil
}

// GetUser resolves an account by name.
func (s *Services) GetUser(ctx context.Context, name string) (*User, error) {
	var user *User
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		id, found, err := tx.IndexGet(graph.LabelUsers, graph.IndexKeyName, name)
		if err != nil {
			return err
		}
		if !found {
			return errs.ApplicationNotFound("user %s", name)
		}
		props, err := tx.Properties(id)
		if err != nil {
			return err
		}
		user = &User{
			ID:        id,
			Name:      props["name"],
			FirstName: props["firstName"],
			LastName:  props["lastName"],
			Enabled:   props["enabled"] == "true",
		}
		return nil
	})
	return user, err
}

// Authenticate verifies a name/password pair and returns the account.
func (s *Services) Authenticate(ctx context.Context, name, password string) (*User, error) {
	var user *User
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		id, found, err := tx.IndexGet(graph.LabelUsers, graph.IndexKeyName, name)
		if err != nil {
			return err
		}
		if !found {
			return errs.ErrNotAuthorized
		}
		props, err := tx.Properties(id)
		if err != nil {
			return err
		}
		if props["enabled"] != "true" {
			return errs.ErrNotAuthorized
		}
		if bcrypt.CompareHashAndPassword([]byte(props["password"]), []byte(password)) != nil {
			return errs.ErrNotAuthorized
		}
		user = &User{ID: id, Name: props["name"], FirstName: props["firstName"], LastName: props["lastName"], Enabled: true}
		return nil
	})
	return user, err
}

// CreateGroup registers a user group; names are unique.
func (s *Services) CreateGroup(ctx context.Context, name, description string) (int64, error) {
	if name == "" {
		return 0, errs.InvalidArgument("group name can not be empty")
	}
	var id int64
	err := s.store.Update(ctx, func(tx *graph.Tx) error {
		var err error
		id, err = tx.CreateNode(graph.LabelGroups)
		if err != nil {
			return err
		}
		now := time.Now().Unix()
		if err := tx.SetProperties(id, map[string]graph.Value{
			"name":         graph.Text(name),
			"description":  graph.Text(description),
			"creationDate": graph.Number(strconv.FormatInt(now, 10), float64(now)),
		}); err != nil {
			return err
		}
		err = tx.IndexAdd(graph.LabelGroups, graph.IndexKeyName, name, id)
		return graph.AsInvalidArgument(err, "a group named %s already exists", name)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AddUserToGroup links an account into a group.
func (s *Services) AddUserToGroup(ctx context.Context, userName, groupName string) error {
	return s.store.Update(ctx, func(tx *graph.Tx) error {
		userID, found, err := tx.IndexGet(graph.LabelUsers, graph.IndexKeyName, userName)
		if err != nil {
			return err
		}
		if !found {
			return errs.ApplicationNotFound("user %s", userName)
		}
		groupID, found, err := tx.IndexGet(graph.LabelGroups, graph.IndexKeyName, groupName)
		if err != nil {
			return err
		}
		if !found {
			return errs.ApplicationNotFound("group %s", groupName)
		}
		existing, err := tx.OutEdges(userID, graph.RelBelongsToGroup)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.End == groupID {
				return errs.InvalidArgument("user %s already belongs to group %s", userName, groupName)
			}
		}
		_, err = tx.CreateEdge(graph.RelBelongsToGroup, userID, groupID, "")
		return err
	})
}

// SetPrivilege grants a feature token at an access level to a user or group
// node. An existing privilege for the token is replaced.
func (s *Services) SetPrivilege(ctx context.Context, ownerID int64, featureToken string, accessLevel int) error {
	return s.store.Update(ctx, func(tx *graph.Tx) error {
		label, err := tx.NodeLabel(ownerID)
		if err != nil {
			return errs.ApplicationNotFound("user or group with id %d", ownerID)
		}
		if label != graph.LabelUsers && label != graph.LabelGroups {
			return errs.InvalidArgument("node %d is not a user or group", ownerID)
		}
		edges, err := tx.OutEdges(ownerID, graph.RelHasPrivilege)
		if err != nil {
			return err
		}
		for _, e := range edges {
			token, _, err := tx.Property(e.End, "featureToken")
			if err != nil {
				return err
			}
			if token == featureToken {
				if err := tx.DeleteNode(e.End); err != nil {
					return err
				}
			}
		}
		privID, err := tx.CreateNode(graph.LabelSpecialNodes)
		if err != nil {
			return err
		}
		if err := tx.SetProperties(privID, map[string]graph.Value{
			"featureToken": graph.Text(featureToken),
			"accessLevel":  graph.Number(strconv.Itoa(accessLevel), float64(accessLevel)),
		}); err != nil {
			return err
		}
		_, err = tx.CreateEdge(graph.RelHasPrivilege, ownerID, privID, "")
		return err
	})
}
