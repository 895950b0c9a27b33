package questionnaire

// ValidNationalID checks a 10-digit Ecuadorian cedula: the first nine digits
// are weighted 2,1,2,1,... with products above 9 reduced by 9, and the tenth
// digit must equal (10 - sum mod 10) mod 10.
func ValidNationalID(s string) bool {
	if len(s) != 10 {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	last := s[9]
	if last < '0' || last > '9' {
		return false
	}
	check := (10 - sum%10) % 10
	return check == int(last-'0')
}
