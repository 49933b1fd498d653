package scheduling

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/flemzord/chime/internal/store"
)

// SplitTargets parses a delimited target list: split on commas, trim
// whitespace per entry, drop empties.
func SplitTargets(raw string) []string {
	var targets []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			targets = append(targets, part)
		}
	}
	return targets
}

// CreateBulk persists the bulk definition and fans it out: one child
// definition per target, named "<base>_<i>" so each child's gateway entry
// name is unique within the group.
//
// Fan-out is not transactional. A persistence failure partway through
// stops the loop and returns the error alongside the children created so
// far; no rollback, no retry. Gateway failures per child are already
// non-fatal inside CreateAndRegister.
func (s *Service) CreateBulk(ctx context.Context, b *store.BulkDefinition) ([]store.Definition, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if err := s.store.CreateBulk(ctx, b); err != nil {
		return nil, err
	}

	var children []store.Definition
	for i, target := range SplitTargets(b.ChatIDs) {
		child := childFromBulk(b, target, i)
		if err := s.CreateAndRegister(ctx, &child); err != nil {
			s.logger.Error("scheduling: bulk fan-out stopped on partial failure",
				"bulk", b.ID, "target", target, "index", i, "error", err)
			return children, err
		}
		children = append(children, child)
	}

	s.logger.Info("scheduling: bulk fan-out complete",
		"bulk", b.ID, "children", len(children))
	return children, nil
}

// UpdateBulk persists the bulk row and pushes every shared field onto the
// existing children, resyncing each gateway entry. The target set itself
// is not reconciled: children are neither added for new targets nor
// removed for dropped ones (matching the observed source behavior); only
// field values on already-existing children are refreshed.
func (s *Service) UpdateBulk(ctx context.Context, b *store.BulkDefinition) error {
	if err := s.store.UpdateBulk(ctx, b); err != nil {
		return err
	}

	children, err := s.store.DefinitionsByGroup(ctx, b.ID)
	if err != nil {
		return err
	}

	for i := range children {
		child := children[i]
		child.JobRef = b.JobRef
		child.TemplateName = b.TemplateName
		child.TemplateNamespace = b.TemplateNamespace
		child.Schedule = b.Schedule
		child.EndAt = b.EndAt
		child.MaxExecutions = b.MaxExecutions
		child.Active = b.Active

		if err := s.UpdateAndResync(ctx, &child); err != nil {
			s.logger.Error("scheduling: bulk child resync failed",
				"bulk", b.ID, "definition", child.ID, "error", err)
			return err
		}
	}

	s.logger.Info("scheduling: bulk definition synced",
		"bulk", b.ID, "children", len(children))
	return nil
}

// DeleteBulk deletes every child of the bulk definition (full definition
// delete: detach history, remove gateway entry, drop row), then the bulk
// row itself. Deleting a child elsewhere never touches the parent.
func (s *Service) DeleteBulk(ctx context.Context, id string) error {
	children, err := s.store.DefinitionsByGroup(ctx, id)
	if err != nil {
		return err
	}

	for _, child := range children {
		if err := s.Delete(ctx, child.ID); err != nil {
			return err
		}
	}

	return s.store.DeleteBulk(ctx, id)
}

// childFromBulk synthesizes the i-th child definition of a bulk template.
func childFromBulk(b *store.BulkDefinition, target string, i int) store.Definition {
	return store.Definition{
		Name:              b.Name + "_" + strconv.Itoa(i),
		JobRef:            b.JobRef,
		ChatID:            target,
		TemplateName:      b.TemplateName,
		TemplateNamespace: b.TemplateNamespace,
		Schedule:          b.Schedule,
		EndAt:             b.EndAt,
		MaxExecutions:     b.MaxExecutions,
		Active:            b.Active,
		GroupID:           b.ID,
	}
}
