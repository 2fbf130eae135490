package email

import "fmt"

// SignedDocument builds the message mailed to a contributor with their
// signed agreement attached.
func SignedDocument(to, projectName string, pdf []byte) Message {
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Your signed CLA for %s", projectName),
		Body: fmt.Sprintf(
			"Hello,\r\n\r\nYour Contributor License Agreement for %s has been signed. "+
				"A copy of the signed document is attached for your records.\r\n", projectName),
		Attachment: &Attachment{
			Filename:    "cla.pdf",
			ContentType: "application/pdf",
			Data:        pdf,
		},
	}
}

// SignatureApproved builds the message sent when a signature transitions to
// approved.
func SignatureApproved(to, projectName string) Message {
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Your CLA for %s has been approved", projectName),
		Body: fmt.Sprintf(
			"Hello,\r\n\r\nYour Contributor License Agreement for %s has been approved. "+
				"You are now authorized to contribute.\r\n", projectName),
	}
}

// ApprovalListAdded builds the notice sent to a contributor added to a
// company's approval list.
func ApprovalListAdded(to, companyName, projectName string) Message {
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("You have been added to the approval list of %s", companyName),
		Body: fmt.Sprintf(
			"Hello,\r\n\r\nYou were added to the approval list of %s for %s. "+
				"You may now contribute under the company's corporate CLA.\r\n",
			companyName, projectName),
	}
}

// ApprovalListRemoved builds the notice sent to a contributor removed from a
// company's approval list.
func ApprovalListRemoved(to, companyName, projectName string) Message {
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("You have been removed from the approval list of %s", companyName),
		Body: fmt.Sprintf(
			"Hello,\r\n\r\nYou were removed from the approval list of %s for %s. "+
				"Contributions are no longer covered by the company's corporate CLA.\r\n",
			companyName, projectName),
	}
}

// ApprovalListSummary builds the combined delta summary sent once per update
// to the CLA managers.
func ApprovalListSummary(to []string, companyName, projectName, summary string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Approval list updated for %s / %s", companyName, projectName),
		Body: fmt.Sprintf(
			"Hello,\r\n\r\nThe approval list of %s for %s was updated:\r\n\r\n%s\r\n",
			companyName, projectName, summary),
	}
}
