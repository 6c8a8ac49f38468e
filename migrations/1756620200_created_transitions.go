package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"

	"train-booking/models"
)

func init() {
	m.Register(func(app core.App) error {
		bookings, err := app.FindCollectionByNameOrId("bookings")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("transitions")

		collection.Fields.Add(
			&core.RelationField{Name: "booking_id", Required: true, MaxSelect: 1, CollectionId: bookings.Id},
			&core.SelectField{
				Name:      "stage",
				Required:  true,
				Values:    []string{models.StageRAC, models.StageConfirm},
				MaxSelect: 1,
			},
			&core.SelectField{
				Name:     "status",
				Required: true,
				Values: []string{
					models.TransitionPending,
					models.TransitionClaimed,
					models.TransitionCompleted,
					models.TransitionCanceled,
				},
				MaxSelect: 1,
			},
			&core.DateField{Name: "fire_at", Required: true},
			&core.DateField{Name: "claimed_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_transitions_due", false, "status, fire_at", "")
		collection.AddIndex("idx_transitions_booking", false, "booking_id, status", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("transitions")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
