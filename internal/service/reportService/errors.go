package reportService

import (
	"errors"
	"fmt"

	"github.com/KotFed0t/trading_simulator/data/repository"
	"github.com/KotFed0t/trading_simulator/internal/service"
)

func notFound(err error, entity string, id any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s %v", service.ErrNotFound, entity, id)
	}
	return err
}
