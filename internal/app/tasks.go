package app

import (
	"context"
	"strconv"
	"time"

	"github.com/netgrid-io/netgrid/internal/errs"
	"github.com/netgrid-io/netgrid/internal/graph"
)

// Task is a named unit of scheduled work users can subscribe to. The engine
// persists tasks and subscriptions; executing them is outside its scope.
type Task struct {
	ID          int64
	Name        string
	Description string
	Enabled     bool
	Script      string
}

// CreateTask persists a task definition.
func (s *Services) CreateTask(ctx context.Context, name, description, script string, enabled bool) (int64, error) {
	if name == "" {
		return 0, errs.InvalidArgument("task name can not be empty")
	}
	var id int64
	err := s.store.Update(ctx, func(tx *graph.Tx) error {
		var err error
		id, err = tx.CreateNode(graph.LabelTasks)
		if err != nil {
			return err
		}
		now := time.Now().Unix()
		if err := tx.SetProperties(id, map[string]graph.Value{
			"name":         graph.Text(name),
			"description":  graph.Text(description),
			"script":       graph.Text(script),
			"enabled":      graph.Text(formatBool(enabled)),
			"creationDate": graph.Number(strconv.FormatInt(now, 10), float64(now)),
		}); err != nil {
			return err
		}
		return tx.IndexAdd(graph.LabelTasks, graph.IndexKeyID, strconv.FormatInt(id, 10), id)
	})
	return id, err
}

// GetTask retrieves a task by id.
func (s *Services) GetTask(ctx context.Context, id int64) (*Task, error) {
	var task *Task
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		if err := requireIndexed(tx, graph.LabelTasks, id, "task"); err != nil {
			return err
		}
		props, err := tx.Properties(id)
		if err != nil {
			return err
		}
		task = &Task{
			ID:          id,
			Name:        props["name"],
			Description: props["description"],
			Script:      props["script"],
			Enabled:     props["enabled"] == "true",
		}
		return nil
	})
	return task, err
}

// GetTasks lists every registered task.
func (s *Services) GetTasks(ctx context.Context) ([]*Task, error) {
	var tasks []*Task
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		ids, err := tx.NodesByLabel(graph.LabelTasks)
		if err != nil {
			return err
		}
		for _, id := range ids {
			props, err := tx.Properties(id)
			if err != nil {
				return err
			}
			tasks = append(tasks, &Task{
				ID:          id,
				Name:        props["name"],
				Description: props["description"],
				Script:      props["script"],
				Enabled:     props["enabled"] == "true",
			})
		}
		return nil
	})
	return tasks, err
}

// DeleteTask removes a task and its subscriptions.
func (s *Services) DeleteTask(ctx context.Context, id int64) error {
	return s.store.Update(ctx, func(tx *graph.Tx) error {
		if err := requireIndexed(tx, graph.LabelTasks, id, "task"); err != nil {
			return err
		}
		return tx.DeleteNode(id)
	})
}

// SubscribeUserToTask registers a user for a task's results.
func (s *Services) SubscribeUserToTask(ctx context.Context, userName string, taskID int64) error {
	return s.store.Update(ctx, func(tx *graph.Tx) error {
		userID, found, err := tx.IndexGet(graph.LabelUsers, graph.IndexKeyName, userName)
		if err != nil {
			return err
		}
		if !found {
			return errs.ApplicationNotFound("user %s", userName)
		}
		if err := requireIndexed(tx, graph.LabelTasks, taskID, "task"); err != nil {
			return err
		}
		existing, err := tx.OutEdges(userID, graph.RelSubscribedTo)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.End == taskID {
				return errs.InvalidArgument("user %s is already subscribed to task %d", userName, taskID)
			}
		}
		_, err = tx.CreateEdge(graph.RelSubscribedTo, userID, taskID, "")
		return err
	})
}

// UnsubscribeUserFromTask removes a subscription.
func (s *Services) UnsubscribeUserFromTask(ctx context.Context, userName string, taskID int64) error {
	return s.store.Update(ctx, func(tx *graph.Tx) error {
		userID, found, err := tx.IndexGet(graph.LabelUsers, graph.IndexKeyName, userName)
		if err != nil {
			return err
		}
		if !found {
			return errs.ApplicationNotFound("user %s", userName)
		}
		edges, err := tx.OutEdges(userID, graph.RelSubscribedTo)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.End == taskID {
				return tx.DeleteEdge(e.ID)
			}
		}
		return errs.ApplicationNotFound("user %s is not subscribed to task %d", userName, taskID)
	})
}

// TaskSubscribers lists the names of the users subscribed to a task.
func (s *Services) TaskSubscribers(ctx context.Context, taskID int64) ([]string, error) {
	var names []string
	err := s.store.View(ctx, func(tx *graph.Tx) error {
		if err := requireIndexed(tx, graph.LabelTasks, taskID, "task"); err != nil {
			return err
		}
		edges, err := tx.InEdges(taskID, graph.RelSubscribedTo)
		if err != nil {
			return err
		}
		for _, e := range edges {
			name, _, err := tx.Property(e.Start, "name")
			if err != nil {
				return err
			}
			names = append(names, name)
		}
		return nil
	})
	return names, err
}

func requireIndexed(tx *graph.Tx, label string, id int64, kind string) error {
	_, found, err := tx.IndexGet(label, graph.IndexKeyID, strconv.FormatInt(id, 10))
	if err != nil {
		return err
	}
	if !found {
		return errs.ApplicationNotFound("%s with id %d", kind, id)
	}
	return nil
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
