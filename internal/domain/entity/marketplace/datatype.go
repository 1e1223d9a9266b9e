package marketplace

// DataType categorizes the personal data a listing offers.
type DataType string

const (
	DataTypeLocationHistory     DataType = "location_history"
	DataTypeAppUsage            DataType = "app_usage"
	DataTypePurchaseHistory     DataType = "purchase_history"
	DataTypeHealthData          DataType = "health_data"
	DataTypeSocialMediaActivity DataType = "social_media_activity"
	DataTypeSearchHistory       DataType = "search_history"
	DataTypeCustom              DataType = "custom"
)

func (dt DataType) String() string {
	return string(dt)
}

func (dt DataType) IsValid() bool {
	switch dt {
	case DataTypeLocationHistory, DataTypeAppUsage, DataTypePurchaseHistory,
		DataTypeHealthData, DataTypeSocialMediaActivity, DataTypeSearchHistory,
		DataTypeCustom:
		return true
	default:
		return false
	}
}

// NewDataType validates the category string. A custom category must carry a
// non-empty detail string; the detail is ignored for the closed set.
func NewDataType(s, customDetail string) (DataType, error) {
	dt := DataType(s)
	if !dt.IsValid() {
		return "", ErrInvalidDataType
	}
	if dt == DataTypeCustom && customDetail == "" {
		return "", ErrMissingCustomType
	}
	return dt, nil
}
